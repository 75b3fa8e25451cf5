package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/wwada/optiroute/http/controller"
	middlewares "github.com/wwada/optiroute/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)
	r.GET("/healthz", ctrl.Health)

	apiRoutes := r.Group("/api/v1")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		apiRoutes.POST("/upload", ctrl.SubmitJob)
		apiRoutes.GET("/results/:job_id", ctrl.GetJobResult)
	}

	return r
}
