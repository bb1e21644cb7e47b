package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phoenix-bikes/biketrack/internal/shared"
)

func TestRespondErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("bike: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("table: %w", ErrConflict), http.StatusConflict},
		{shared.ErrValidationMissing, http.StatusBadRequest},
		{shared.ErrUnauthorized, http.StatusForbidden},
		{shared.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{shared.QueryFailed("bikes", fmt.Errorf("connection reset")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.want, rr.Code, tc.err.Error())

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, tc.want, body.Status)
	}
}
