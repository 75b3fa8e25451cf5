package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/wwada/optiroute/http/controller"
)

type Middlewares struct {
	CORSMiddleware gin.HandlerFunc
	AuthMiddleware gin.HandlerFunc
}

func NewMiddlewares(ctrl *controller.Controller) (*Middlewares, error) {
	return &Middlewares{
		CORSMiddleware: CORSMiddleware(ctrl.Config.EnvConfig),
		AuthMiddleware: AuthMiddleware(ctrl.Config.EnvConfig),
	}, nil
}
