package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technoclass/campus-vms/internal/middleware"
	"github.com/technoclass/campus-vms/internal/tokens"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Schools *SchoolHandler
	NVRs    *NVRHandler
	Cameras *CameraHandler
	Areas   *AreaHandler
	Auth    *middleware.JWTAuth
}

// NewRouter wires the full route tree. Everything under /api/v1
// requires a valid access token; config and deploy surfaces are
// additionally restricted to admin roles because the rendered config
// carries cleartext device credentials.
func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	adminOnly := middleware.RequireRole(tokens.RoleSchoolAdmin)
	superOnly := middleware.RequireRole()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.Auth.Middleware)

		r.Group(func(r chi.Router) {
			r.Use(superOnly)
			r.Post("/schools", h.Schools.Create)
			r.Get("/schools", h.Schools.List)
		})

		r.Route("/schools/{schoolID}", func(r chi.Router) {
			r.Get("/", h.Schools.Get)
			r.Get("/nvrs", h.NVRs.List)
			r.Get("/cameras", h.Cameras.List)
			r.Get("/areas", h.Areas.List)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/nvrs", h.NVRs.Create)
				r.Post("/cameras", h.Cameras.Create)
				r.Post("/areas", h.Areas.Create)
				r.Post("/preview-rtsp-url", h.Cameras.PreviewRTSPURL)
				r.Get("/mediamtx-config", h.Cameras.SchoolMediaMTXConfig)
				r.Post("/mediamtx-deploy", h.Cameras.SchoolDeploy)
			})
		})

		r.Route("/nvrs/{id}", func(r chi.Router) {
			r.Get("/", h.NVRs.Get)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Put("/", h.NVRs.Update)
				r.Delete("/", h.NVRs.Delete)
				r.Post("/test-connection", h.NVRs.TestConnection)
				r.Post("/sync", h.NVRs.Sync)
				r.Get("/onvif-info", h.NVRs.OnvifInfo)
				r.Post("/onvif-sync", h.NVRs.OnvifSync)
				r.Get("/mediamtx-config", h.NVRs.MediaMTXConfig)
				r.Post("/mediamtx-deploy", h.NVRs.Deploy)
				r.Get("/mediamtx-deploy/last", h.NVRs.LastDeployTarget)
			})
		})

		r.Route("/cameras/{id}", func(r chi.Router) {
			r.Get("/", h.Cameras.Get)
			r.Get("/stream", h.Cameras.Stream)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Put("/", h.Cameras.Update)
				r.Delete("/", h.Cameras.Delete)
				r.Post("/test-stream", h.Cameras.TestStream)
			})
		})

		r.Route("/areas/{id}", func(r chi.Router) {
			r.Use(adminOnly)
			r.Put("/", h.Areas.Update)
			r.Delete("/", h.Areas.Delete)
		})
	})

	return r
}
