package scale

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gfrmin/scalibur/internal/modules/scale/controller"
	"github.com/gfrmin/scalibur/internal/modules/scale/etl"
	"github.com/gfrmin/scalibur/internal/modules/scale/repository"
	"github.com/gfrmin/scalibur/internal/modules/scale/service"
	"github.com/gfrmin/scalibur/internal/mqtt"
)

// RegisterFeature wires the scale module: repository over the shared DB,
// ingest pipeline, HTTP routes, and the MQTT packet handler. It returns the
// pipeline so the app can also run it on a timer.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, subscriber mqtt.PacketSubscriber, gap, window time.Duration, logger *slog.Logger) *etl.Pipeline {
	repo := repository.NewRepository(db)
	pipeline := etl.NewPipeline(repo, gap, window, logger)
	controller.NewScaleController(repo, pipeline).RegisterRoutes(mux)
	service.RegisterMQTTHandler(subscriber, repo, logger)
	return pipeline
}
