package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/monitoring"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

// Health reports the readiness of the service's dependencies. Any probe reporting down
// turns the response into 503; degraded dependencies still answer 200.
func Health(checker *monitoring.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.Evaluate(requestContext(c))
		status := http.StatusOK
		if report.Status == monitoring.StatusDown {
			status = http.StatusServiceUnavailable
		}
		response.Success(c, status, report)
	}
}

// Liveness answers as long as the process serves HTTP.
func Liveness(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": monitoring.StatusUp})
}
