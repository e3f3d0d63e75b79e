package http

import (
	"AccessOps/internal/config"
	lifecycleHandler "AccessOps/internal/modules/lifecycle/interface/http"
	notifyHandler "AccessOps/internal/modules/notify/interface/http"
	"AccessOps/pkg/ssl"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var GE *gin.Engine

// Init 组装路由；依赖由 main 构造完成后传入
func Init(requestH *lifecycleHandler.RequestHandler, notificationH *notifyHandler.NotificationHandler) {
	GE = gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	GE.Use(cors.New(corsConfig))
	GE.Use(ssl.TlsHandler(config.GetConfig().MainConfig.Host, config.GetConfig().MainConfig.Port))

	GE.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	GE.GET("/wss", notificationH.Connect)

	GE.POST("/request/submit", requestH.Submit)
	GE.POST("/request/list", requestH.List)
	GE.POST("/request/getByNumber", requestH.GetByNumber)

	GE.POST("/notification/list", notificationH.List)
	GE.POST("/notification/markRead", notificationH.MarkRead)
	GE.GET("/notification/publisherStatus", notificationH.PublisherStatus)
}
