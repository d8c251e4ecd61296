package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"studybuddy/internal/util"
)

func TestToAPIErrorUnsupportedUploadHint(t *testing.T) {
	apiErr := toAPIError(http.StatusBadRequest, fmt.Errorf("%w: png", util.ErrUnsupportedFormat))
	require.Equal(t, "SB-API-4001", apiErr.Code)
	require.Equal(t, "Unsupported file type. Upload pdf, docx, txt or md.", apiErr.Message)
}

func TestMaterialsScopedRoutesExist(t *testing.T) {
	s := &Server{}

	// Known subroutes reject wrong methods with 405; unknown subroutes 404.
	for _, sub := range []string{"file", "content", "progress"} {
		req := httptest.NewRequest(http.MethodPatch, "/materials/m1/"+sub, nil)
		rec := httptest.NewRecorder()
		s.handleMaterialsScoped(rec, req)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code, sub)
	}

	req := httptest.NewRequest(http.MethodGet, "/materials/m1/unknown", nil)
	rec := httptest.NewRecorder()
	s.handleMaterialsScoped(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
