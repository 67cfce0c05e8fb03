package server

import (
	"net/http"

	"github.com/rs/cors"
)

// newCORS allows every origin with credentials. The origin is echoed back
// instead of "*" so browsers accept credentialed responses. Only suitable
// for local or trusted deployments.
func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
}
