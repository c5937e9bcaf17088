package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/handlers/testutil"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
)

const vendorID = "vendor-acme"

func newRequestPayload() map[string]any {
	return map[string]any{
		"vendor_id":       vendorID,
		"vendor_name":     "Acme Plumbing",
		"user_full_name":  "Jonas Petraitis",
		"user_email":      "jonas@example.com",
		"request_title":   "Leaking tap",
		"request_details": "The kitchen tap drips all night.",
		"urgency":         "high",
	}
}

func createRequest(t *testing.T, env *testutil.Env, token string) models.ServiceRequest {
	t.Helper()
	w := env.Request(http.MethodPost, "/api/requests", newRequestPayload(), token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var req models.ServiceRequest
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &req)
	return req
}

func TestRequestsRequireAuthentication(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/requests/mine", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodGet, "/api/requests/mine", nil, "garbage")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateRequestValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("cust-1", false)

	payload := newRequestPayload()
	payload["user_email"] = "not-an-email"
	payload["request_title"] = "   "

	w := env.Request(http.MethodPost, "/api/requests", payload, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "valid email")
	require.Equal(t, "request title must not be blank", resp.Error.Fields["request_title"])
}

func TestRequestConversationFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	env.ApproveClaim("agent-a", vendorID)

	customer := env.Token("cust-1", false)
	agent := env.Token("agent-a", false)
	outsider := env.Token("stranger", false)

	created := createRequest(t, env, customer)
	require.Equal(t, models.StatusPending, created.Status)
	require.Nil(t, created.OwnerUID)

	w := env.Request(http.MethodGet, "/api/requests/"+created.ID, nil, outsider)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodGet, "/api/requests/vendor", nil, agent)
	require.Equal(t, http.StatusOK, w.Code)
	var vendorList []models.ServiceRequest
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &vendorList)
	require.Len(t, vendorList, 1)

	// vendor reply without explicit role assigns ownership
	w = env.Request(http.MethodPost, "/api/requests/"+created.ID+"/messages", map[string]any{"content": "We can come tomorrow"}, agent)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sent services.SendResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &sent)
	require.Equal(t, models.StatusInProgress, sent.Request.Status)
	require.Equal(t, "agent-a", sent.Request.Owner())
	require.Equal(t, models.SenderVendor, sent.Message.SenderType)

	w = env.Request(http.MethodPost, "/api/requests/"+created.ID+"/messages", map[string]any{"content": "Thanks!"}, customer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, "/api/requests/"+created.ID+"/messages?tz=Europe/Vilnius", nil, customer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var listed struct {
		Messages []models.RequestMessage `json:"messages"`
		Groups   []struct {
			Label    string `json:"label"`
			Messages []struct {
				Content string `json:"content"`
				Mine    bool   `json:"mine"`
			} `json:"messages"`
		} `json:"groups"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &listed)
	require.Len(t, listed.Messages, 2)
	require.Len(t, listed.Groups, 1)
	require.Equal(t, "Today", listed.Groups[0].Label)
	require.False(t, listed.Groups[0].Messages[0].Mine)
	require.True(t, listed.Groups[0].Messages[1].Mine)

	// customer cannot complete
	w = env.Request(http.MethodPost, "/api/requests/"+created.ID+"/complete", nil, customer)
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.Request(http.MethodPost, "/api/requests/"+created.ID+"/complete", nil, agent)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var completed models.ServiceRequest
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &completed)
	require.Equal(t, models.StatusCompleted, completed.Status)

	w = env.Request(http.MethodPost, "/api/requests/"+created.ID+"/complete", nil, agent)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "INVALID_TRANSITION", testutil.DecodeResponse(t, w).Error.Code)
}

func TestSendMessageRejectsSelfOwnership(t *testing.T) {
	env := testutil.NewEnv(t)
	customer := env.Token("cust-1", false)
	created := createRequest(t, env, customer)

	w := env.Request(http.MethodPost, "/api/requests/"+created.ID+"/messages", map[string]any{"content": "hi", "role": "vendor"}, customer)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "SELF_OWNERSHIP", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPost, "/api/requests/"+created.ID+"/messages", map[string]any{"content": "hi", "role": "owner"}, customer)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnreadSummaryAndViewed(t *testing.T) {
	env := testutil.NewEnv(t)
	env.ApproveClaim("agent-a", vendorID)
	customer := env.Token("cust-1", false)
	agent := env.Token("agent-a", false)

	created := createRequest(t, env, customer)
	w := env.Request(http.MethodPost, "/api/requests/"+created.ID+"/messages", map[string]any{"content": "Hello"}, agent)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.Request(http.MethodGet, "/api/unread?role=customer", nil, customer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary services.UnreadSummary
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &summary)
	require.Equal(t, 1, summary.Requests)
	require.EqualValues(t, 1, summary.Messages)
	require.Equal(t, []string{created.ID}, summary.RequestIDs)

	w = env.Request(http.MethodPost, "/api/requests/"+created.ID+"/viewed", nil, customer)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodGet, "/api/unread?role=customer", nil, customer)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &summary)
	require.Zero(t, summary.Requests)

	w = env.Request(http.MethodGet, "/api/unread?role=admin", nil, customer)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWriteRateLimit(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithRateLimit(1, time.Minute))
	customer := env.Token("cust-1", false)

	createRequest(t, env, customer)
	w := env.Request(http.MethodPost, "/api/requests", newRequestPayload(), customer)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "RATE_LIMITED", testutil.DecodeResponse(t, w).Error.Code)

	other := env.Token("cust-2", false)
	createRequest(t, env, other)
}

func TestCreateRequestReplaysIdempotencyKey(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithIdempotency(time.Hour))
	token := env.Token("cust-1", false)
	header := http.Header{"Idempotency-Key": []string{"create-7f3a"}}

	first := env.RequestWithHeaders(http.MethodPost, "/api/requests", newRequestPayload(), token, header)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	require.Empty(t, first.Header().Get("Idempotent-Replay"))

	second := env.RequestWithHeaders(http.MethodPost, "/api/requests", newRequestPayload(), token, header)
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	require.JSONEq(t, first.Body.String(), second.Body.String())

	var count int64
	require.NoError(t, env.DB.Model(&models.ServiceRequest{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// Keys are per caller.
	other := env.RequestWithHeaders(http.MethodPost, "/api/requests", newRequestPayload(), env.Token("cust-2", false), header)
	require.Equal(t, http.StatusCreated, other.Code)
	require.Empty(t, other.Header().Get("Idempotent-Replay"))
}

func TestListMineRendersEmptyList(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/requests/mine", nil, env.Token("cust-empty", false))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":true,"data":[],"meta":{"count":0}}`, w.Body.String())
}
