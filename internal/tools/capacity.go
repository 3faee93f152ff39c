package tools

import (
	"context"

	"github.com/jmagar/glances-mcp/internal/capacity"
)

// ServerForecast is one server's capacity prediction entry. A fetch failure
// leaves Prediction nil and sets Error.
type ServerForecast struct {
	ServerAlias string                     `json:"server_alias"`
	Error       string                     `json:"error,omitempty"`
	Prediction  *capacity.ServerPrediction `json:"prediction,omitempty"`
}

// PredictResourceNeeds forecasts resource utilization per server over the
// projection horizon. Predictions are only produced for metrics whose trend
// confidence meets the requested level.
func (s *Service) PredictResourceNeeds(ctx context.Context, serverAlias string, projectionDays int, confidenceLevel float64) (map[string]ServerForecast, error) {
	ctx, done := s.observe(ctx, "predict_resource_needs")
	var err error
	defer func() { done(err) }()

	if _, _, verr := capacity.ValidatePredictionParams(projectionDays, confidenceLevel); verr != nil {
		err = verr
		return nil, verr
	}

	clients, cerr := s.clientsFor(serverAlias)
	if cerr != nil {
		err = cerr
		return nil, cerr
	}

	out := make(map[string]ServerForecast, len(clients))
	for _, c := range clients {
		alias := c.Server().Alias
		prediction, ferr := s.projector.Predict(ctx, c, projectionDays, confidenceLevel)
		if ferr != nil {
			s.logger.Warn("resource prediction failed", "server_alias", alias, "error", ferr)
			out[alias] = ServerForecast{ServerAlias: alias, Error: ferr.Error()}
			continue
		}
		out[alias] = ServerForecast{ServerAlias: alias, Prediction: prediction}
	}
	return out, nil
}
