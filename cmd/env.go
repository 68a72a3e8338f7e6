package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verichain-labs/verichain/internal/anchor"
	"github.com/verichain-labs/verichain/internal/classify"
	"github.com/verichain-labs/verichain/internal/content"
	"github.com/verichain-labs/verichain/internal/ledger"
	"github.com/verichain-labs/verichain/internal/pinning"
	"github.com/verichain-labs/verichain/internal/pipeline"
	"github.com/verichain-labs/verichain/internal/store"
	"github.com/verichain-labs/verichain/pkg/chainrpc"
	"github.com/verichain-labs/verichain/pkg/hfinference"
	"github.com/verichain-labs/verichain/pkg/pinata"
)

// verifyEnv holds the initialized store, adapters, and the pipeline shared
// by the serve/verify commands.
type verifyEnv struct {
	Store      store.Store
	Classifier *classify.Classifier
	Pinner     *pinning.Pinner
	Anchorer   anchor.Anchorer
	Temp       *content.TempStore
	Pipeline   *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *verifyEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		// Validate guarantees database_url is set for this driver.
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initAnchorer picks the ledger backend. Mode "auto" uses the JSON-RPC
// anchorer when an endpoint and contract are configured, otherwise the
// in-process ledger.
func initAnchorer() anchor.Anchorer {
	mode := cfg.Ledger.Mode
	if mode == "auto" {
		if cfg.Ledger.RPCURL != "" && cfg.Ledger.ContractAddress != "" {
			mode = "rpc"
		} else {
			mode = "embedded"
		}
	}

	switch mode {
	case "rpc":
		zap.L().Info("anchoring via JSON-RPC",
			zap.String("endpoint", cfg.Ledger.RPCURL),
			zap.String("contract", cfg.Ledger.ContractAddress),
		)
		client := chainrpc.NewClient(cfg.Ledger.RPCURL)
		return anchor.NewRPC(client, cfg.Ledger.ContractAddress, cfg.Ledger.FromAddress)
	case "embedded":
		zap.L().Info("anchoring via embedded ledger", zap.String("owner", cfg.Ledger.OwnerAddress))
		l := ledger.New(cfg.Ledger.OwnerAddress)
		return anchor.NewEmbedded(l, cfg.Ledger.OwnerAddress)
	default:
		zap.L().Info("anchoring disabled, using mock proofs")
		return anchor.NewMock()
	}
}

// initEnv sets up the store, adapters, and the pipeline for the given config
// validation mode. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*verifyEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var inference hfinference.Client
	if cfg.AI.Key != "" {
		inference = hfinference.NewClient(cfg.AI.Key, hfinference.WithBaseURL(cfg.AI.BaseURL))
	} else {
		zap.L().Warn("VERICHAIN_AI_KEY not set, classification runs in mock mode")
	}
	classifier := classify.NewClassifier(inference,
		classify.WithModels(cfg.AI.PrimaryModel, cfg.AI.FallbackModel))

	var pinClient pinata.Client
	if cfg.Pinata.JWT != "" {
		pinClient = pinata.NewClient(cfg.Pinata.JWT, pinata.WithBaseURL(cfg.Pinata.BaseURL))
	} else {
		zap.L().Warn("VERICHAIN_PINATA_JWT not set, pinning runs in mock mode")
	}
	pinner := pinning.NewPinner(pinClient, pinning.WithGatewayURL(cfg.Pinata.GatewayURL))

	anchorer := initAnchorer()

	temp, err := content.NewTempStore(cfg.Temp.Dir)
	if err != nil {
		zap.L().Warn("temp store init failed, upload spooling disabled", zap.Error(err))
		temp = nil
	}

	opts := []pipeline.Option{pipeline.WithMaxUploadBytes(cfg.Upload.MaxBytes)}
	if temp != nil {
		opts = append(opts, pipeline.WithTempStore(temp))
	}
	p := pipeline.New(st, classifier, pinner, anchorer, opts...)

	return &verifyEnv{
		Store:      st,
		Classifier: classifier,
		Pinner:     pinner,
		Anchorer:   anchorer,
		Temp:       temp,
		Pipeline:   p,
	}, nil
}
