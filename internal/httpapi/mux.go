// Package httpapi owns the HTTP surface: the root mux, the server with its
// timeouts, the request logger, and the healthcheck. Feature routes (the
// measurement and ingest endpoints) are registered on the mux by the scale
// module itself.
package httpapi

import (
	"database/sql"
	"net/http"
)

func NewMux(db *sql.DB) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	return mux
}
