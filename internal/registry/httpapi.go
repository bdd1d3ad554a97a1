package registry

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	artifactListRoutePathConstant   = "/api/artifacts"
	artifactDetailRoutePathConstant = "/api/artifacts/:name"
	healthRoutePathConstant         = "/healthz"
	artifactNameRouteParamConstant  = "name"
	artifactNotFoundMessageConstant = "artifact not found"
	healthStatusValueConstant       = "ok"
	responseStatusKeyConstant       = "status"
	responseErrorKeyConstant        = "error"
	responseArtifactsKeyConstant    = "artifacts"
	responseCountKeyConstant        = "count"
	responseLastModifiedKeyConstant = "last_modified_utc"
)

// NewHTTPHandler builds the read-only provenance API over the registry. The
// API serves audit queries only; registration and cleanup stay with the
// pipeline and the CLI.
func NewHTTPHandler(service *Service) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET(healthRoutePathConstant, func(requestContext *gin.Context) {
		requestContext.JSON(http.StatusOK, gin.H{responseStatusKeyConstant: healthStatusValueConstant})
	})

	router.GET(artifactListRoutePathConstant, func(requestContext *gin.Context) {
		artifacts := service.Artifacts()
		requestContext.JSON(http.StatusOK, gin.H{
			responseArtifactsKeyConstant:    artifacts,
			responseCountKeyConstant:        len(artifacts),
			responseLastModifiedKeyConstant: service.LastModifiedUTC(),
		})
	})

	router.GET(artifactDetailRoutePathConstant, func(requestContext *gin.Context) {
		artifactName := requestContext.Param(artifactNameRouteParamConstant)
		artifact, found := service.Lookup(artifactName)
		if !found {
			requestContext.JSON(http.StatusNotFound, gin.H{responseErrorKeyConstant: artifactNotFoundMessageConstant})
			return
		}
		requestContext.JSON(http.StatusOK, artifact)
	})

	return router
}
