package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"mailpool/backend/internal/monitoring"
)

// 指标注册在全局注册表上，整个测试二进制只初始化一次
var testMetrics = monitoring.NewMetrics()

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("请求计入 HTTP 指标", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestLogger(zap.NewNop(), testMetrics))
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		count := testutil.ToFloat64(testMetrics.HTTPRequestsTotal.WithLabelValues("GET", "/ping", "200"))
		assert.Equal(t, float64(1), count)
	})

	t.Run("未注入指标时正常放行", func(t *testing.T) {
		router := gin.New()
		router.Use(RequestLogger(zap.NewNop(), nil))
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("panic 计入指标并返回统一 500", func(t *testing.T) {
		router := gin.New()
		router.Use(RecoveryHandler(zap.NewNop(), testMetrics))
		router.GET("/boom", func(c *gin.Context) { panic("boom") })

		before := testutil.ToFloat64(testMetrics.PanicsTotal)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, before+1, testutil.ToFloat64(testMetrics.PanicsTotal))
	})
}
