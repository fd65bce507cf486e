package middleware

import (
	"os"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	os.Setenv("CB_JWT_SECRET", "test-jwt-secret-that-is-32-chars!!")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}
