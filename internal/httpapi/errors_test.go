package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"asistencia/internal/apperr"
)

func doFail(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	fail(c, err)

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	return w, body
}

func TestFailStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.NotFound("event not found"), http.StatusNotFound},
		{apperr.Validation("date must be YYYY-MM-DD"), http.StatusBadRequest},
		{apperr.Forbidden("nope"), http.StatusForbidden},
		{apperr.Unauthorized("invalid credentials"), http.StatusUnauthorized},
		{apperr.Internal("boom", errors.New("pq: down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w, body := doFail(t, tc.err)
		if w.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.status)
		}
		if body["success"] != false {
			t.Errorf("%v: success should be false", tc.err)
		}
	}
}

func TestFailHidesInternalDetail(t *testing.T) {
	_, body := doFail(t, apperr.Internal("could not load event", errors.New("pq: connection refused")))
	if body["message"] != "internal server error" {
		t.Errorf("internal detail leaked: %q", body["message"])
	}
}

func TestFailDuplicateCarriesStudentAndTimestamp(t *testing.T) {
	prior := time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC)
	w, body := doFail(t, &apperr.DuplicateAttendance{
		StudentName: "Maria Lopez",
		CarnetCode:  "CARNET-9",
		PriorAt:     prior,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	student, ok := body["student"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing student block: %v", body)
	}
	if student["name"] != "Maria Lopez" || student["carnet_code"] != "CARNET-9" {
		t.Errorf("student block = %v", student)
	}
	if body["prior_registered_at"] == nil {
		t.Error("prior_registered_at should be present")
	}
}
