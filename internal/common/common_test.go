package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	a, err := NewULID()
	require.NoError(t, err)
	b, err := NewULID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	_, err = ulid.Parse(a)
	require.NoError(t, err)
}

func TestFail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Fail(c, http.StatusNotFound, "conversation not found")
	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"conversation not found"}`, w.Body.String())
}
