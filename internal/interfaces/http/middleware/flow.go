// internal/interfaces/http/middleware/flow.go
package middleware

import (
	"fmt"
	"net/http"

	sentinel "github.com/alibaba/sentinel-golang/api"
	"github.com/alibaba/sentinel-golang/core/base"
	"github.com/alibaba/sentinel-golang/core/flow"
	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/config"
)

// InitFlowControl starts Sentinel and loads the checkout QPS rule
func InitFlowControl(cfg *config.Config) error {
	if err := sentinel.InitDefault(); err != nil {
		return fmt.Errorf("failed to init sentinel: %w", err)
	}

	_, err := flow.LoadRules([]*flow.Rule{
		{
			Resource:               cfg.Flow.ResourceName,
			TokenCalculateStrategy: flow.Direct,
			ControlBehavior:        flow.Reject,
			Threshold:              cfg.Flow.CheckoutQPS,
			StatIntervalInMs:       1000,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to load flow rules: %w", err)
	}
	return nil
}

// FlowControl rejects requests over the resource's QPS threshold with 429
func FlowControl(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, b := sentinel.Entry(resource, sentinel.WithTrafficType(base.Inbound))
		if b != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many checkout requests, please retry shortly",
			})
			c.Abort()
			return
		}
		defer e.Exit()

		c.Next()
	}
}
