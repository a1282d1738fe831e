package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newAuthedHandler(username, password string) http.Handler {
	questions := &stubQuestionService{}
	ingester := &stubIngester{jobID: "job-1"}
	queryLog := &stubQueryLog{}
	return NewRouter(questions, ingester, queryLog, nil, nil, username, password).Handler()
}

func TestBasicAuthRejectsMissingCredentials(t *testing.T) {
	handler := newAuthedHandler("tax", "secret")

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"Hi"}`))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if challenge := recorder.Header().Get("WWW-Authenticate"); !strings.HasPrefix(challenge, "Basic") {
		t.Fatalf("expected basic auth challenge, got %q", challenge)
	}
}

func TestBasicAuthRejectsWrongPassword(t *testing.T) {
	handler := newAuthedHandler("tax", "secret")

	req := httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(`{"query_id":"q","feedback":"positive"}`))
	req.SetBasicAuth("tax", "wrong")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestBasicAuthAcceptsValidCredentials(t *testing.T) {
	handler := newAuthedHandler("tax", "secret")

	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(`{"url":"https://www.ird.govt.nz/kiwisaver"}`))
	req.SetBasicAuth("tax", "secret")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestBasicAuthExemptsHealth(t *testing.T) {
	handler := newAuthedHandler("tax", "secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected health exempt from auth, got %d", recorder.Code)
	}
}

func TestBasicAuthDisabledWithoutCredentials(t *testing.T) {
	handler := newAuthedHandler("", "")

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"Hi"}`))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code == http.StatusUnauthorized {
		t.Fatal("expected auth disabled when credentials are unset")
	}
}
