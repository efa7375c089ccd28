package siamese

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kozaktomas/signet/internal/config"
	"github.com/kozaktomas/signet/internal/constants"
	"github.com/kozaktomas/signet/internal/signature"
)

// NewFactory returns a factory for the configured model backend.
func NewFactory(model config.ModelConfig, policy config.PolicyConfig) (signature.ModelFactory, error) {
	switch model.Backend {
	case config.ModelBackendBuiltin, "":
		opts := LinearOptions{
			Height:       constants.ImageHeight,
			Width:        constants.ImageWidth,
			EmbeddingDim: policy.EmbeddingDim,
			LearningRate: policy.LearningRate,
			Margin:       policy.Margin,
			Seed:         model.Seed,
		}
		return func() (signature.SimilarityModel, error) {
			return NewLinear(opts), nil
		}, nil
	case config.ModelBackendRemote:
		client := &http.Client{Timeout: 5 * time.Minute}
		return func() (signature.SimilarityModel, error) {
			return NewRemote(model.ServerURL, client), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", model.Backend)
	}
}
