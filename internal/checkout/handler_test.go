package checkout

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"classifieds/internal/payment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc)

	authed := r.Group("/checkout", func(c *gin.Context) {
		c.Set("user_id", "user_1")
		c.Set("user_email", "seller@example.com")
		c.Next()
	})
	authed.POST("/promotion", h.CreatePromotion)
	authed.POST("/subscription", h.CreateSubscription)
	authed.POST("/topup", h.CreateTopup)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Host = "market.example.com"
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_CreatePromotion(t *testing.T) {
	p := new(MockProcessor)
	r := setupRouter(newTestService(p, ""))

	p.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(cp payment.CheckoutParams) bool {
		return cp.CustomerEmail == "seller@example.com" &&
			cp.SuccessURL == "http://market.example.com/payments/success?session_id={CHECKOUT_SESSION_ID}"
	})).Return(&payment.Session{ID: "cs_1", URL: "https://pay/cs_1"}, nil)

	w := post(r, "/checkout/promotion", `{"listing_id":"42","tier":"HOMEPAGE"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "cs_1", res.SessionID)
	assert.Equal(t, "https://pay/cs_1", res.URL)
	p.AssertExpectations(t)
}

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		setup  func(p *MockProcessor)
		status int
	}{
		{"missing fields", "/checkout/promotion", `{}`, nil, http.StatusBadRequest},
		{"unknown tier", "/checkout/promotion", `{"listing_id":"42","tier":"GOLD"}`, nil, http.StatusBadRequest},
		{"missing listing", "/checkout/promotion", `{"listing_id":"9","tier":"HOMEPAGE"}`, nil, http.StatusNotFound},
		{"bad duration", "/checkout/subscription", `{"plan":"PRO","duration":"daily"}`, nil, http.StatusBadRequest},
		{"zero topup", "/checkout/topup", `{"amount":"0"}`, nil, http.StatusBadRequest},
		{"processor down", "/checkout/topup", `{"amount":"25"}`, func(p *MockProcessor) {
			p.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(nil, assert.AnError)
		}, http.StatusBadGateway},
		{"not configured", "/checkout/subscription", `{"plan":"PRO","duration":"monthly"}`, func(p *MockProcessor) {
			p.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(nil, payment.ErrNotConfigured)
		}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(MockProcessor)
			if tt.setup != nil {
				tt.setup(p)
			}
			r := setupRouter(newTestService(p, "https://market.example.com"))

			w := post(r, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestHandler_Unauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/checkout/topup", NewHandler(newTestService(new(MockProcessor), "https://x.example.com")).CreateTopup)

	w := post(r, "/checkout/topup", `{"amount":"25"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestBaseURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "api.internal:8080"
	assert.Equal(t, "http://api.internal:8080", RequestBaseURL(req))

	req.Header.Set("X-Forwarded-Proto", "https, http")
	req.Header.Set("X-Forwarded-Host", "market.example.com")
	assert.Equal(t, "https://market.example.com", RequestBaseURL(req))

	tlsReq := httptest.NewRequest(http.MethodGet, "/", nil)
	tlsReq.Host = "secure.example.com"
	tlsReq.TLS = &tls.ConnectionState{}
	assert.Equal(t, "https://secure.example.com", RequestBaseURL(tlsReq))
}
