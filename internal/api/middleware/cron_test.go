package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

const testCronSecret = "cron-shared-secret"

func cronRouter(secret string) *gin.Engine {
	router := gin.New()
	router.Use(CronAuth(secret))
	router.POST("/jobs/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestCronAuth_Success(t *testing.T) {
	router := cronRouter(testCronSecret)

	req := httptest.NewRequest("POST", "/jobs/test", nil)
	req.Header.Set("Authorization", "Bearer "+testCronSecret)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCronAuth_MissingHeader(t *testing.T) {
	router := cronRouter(testCronSecret)

	req := httptest.NewRequest("POST", "/jobs/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCronAuth_WrongSecret(t *testing.T) {
	router := cronRouter(testCronSecret)

	req := httptest.NewRequest("POST", "/jobs/test", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCronAuth_EmptySecretRejectsAll(t *testing.T) {
	router := cronRouter("")

	req := httptest.NewRequest("POST", "/jobs/test", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
