package logger

import (
	"Solace/internal/api/config"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SetupGin 访问日志 & Recovery；长轮询请求量大，跳过 skipPrefix 下的访问日志
func SetupGin(r *gin.Engine, skipPrefix string) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output: LogWriter,
		Skip: func(c *gin.Context) bool {
			return skipPrefix != "" && strings.HasPrefix(c.Request.URL.Path, skipPrefix) &&
				c.Query("transport") == "polling"
		},
		Formatter: func(p gin.LogFormatterParams) string {
			var traceID string
			if p.Keys != nil {
				if id, ok := p.Keys[TraceIDKey].(string); ok {
					traceID = id
				}
			}

			if traceID == "" && p.Request != nil {
				if id, ok := p.Request.Context().Value(TraceIDKey).(string); ok {
					traceID = id
				}
			}

			return fmt.Sprintf(
				`{"time":"%s","level":"INFO","msg":"GIN_ACCESS","trace_id":"%s","log_token":"%s","target_index":"%s","method":"%s","path":"%s","client_ip":"%s","status":%d,"latency":"%v"}`+"\n",
				p.TimeStamp.Format(time.RFC3339),
				traceID,
				config.Cfg.Logstash.Token,
				config.Cfg.Logstash.Index,
				p.Method,
				p.Path,
				p.ClientIP,
				p.StatusCode,
				p.Latency,
			)
		},
	}))

	r.Use(gin.Recovery())
}
