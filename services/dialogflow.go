package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"

	"golang.org/x/oauth2/jwt"

	"rental-chat/models"
)

const (
	dialogflowAPIURL = "https://dialogflow.googleapis.com/v2"
	googleTokenURL   = "https://oauth2.googleapis.com/token"
	dialogflowScope  = "https://www.googleapis.com/auth/cloud-platform"
)

// DialogflowService handles communication with the Dialogflow v2 API.
// Credentials and language are fixed at construction.
type DialogflowService struct {
	projectID    string
	languageCode string
	baseURL      string
	client       *http.Client
}

// NewDialogflowService creates a Dialogflow service authenticating with a
// service-account JWT.
func NewDialogflowService(projectID, clientEmail, privateKey, languageCode string) *DialogflowService {
	conf := &jwt.Config{
		Email:      clientEmail,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{dialogflowScope},
		TokenURL:   googleTokenURL,
	}
	return &DialogflowService{
		projectID:    projectID,
		languageCode: languageCode,
		baseURL:      dialogflowAPIURL,
		client:       conf.Client(context.Background()),
	}
}

// NewDialogflowServiceForTest creates a service talking plain HTTP to
// baseURL, bypassing Google auth.
func NewDialogflowServiceForTest(baseURL, projectID, languageCode string) *DialogflowService {
	return &DialogflowService{
		projectID:    projectID,
		languageCode: languageCode,
		baseURL:      baseURL,
		client:       &http.Client{},
	}
}

// SessionGateway binds the service to one Dialogflow session; it
// satisfies the engine's Gateway interface.
type SessionGateway struct {
	svc       *DialogflowService
	sessionID string
}

// Session returns a gateway scoped to sessionID.
func (s *DialogflowService) Session(sessionID string) *SessionGateway {
	return &SessionGateway{svc: s, sessionID: sessionID}
}

// Detect sends one utterance through the bound session.
func (g *SessionGateway) Detect(ctx context.Context, utterance string) (models.NLUResult, error) {
	return g.svc.DetectIntent(ctx, g.sessionID, utterance)
}

type detectIntentRequest struct {
	QueryInput queryInput `json:"queryInput"`
}

type queryInput struct {
	Text textInput `json:"text"`
}

type textInput struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

type detectIntentResponse struct {
	ResponseID  string      `json:"responseId"`
	QueryResult queryResult `json:"queryResult"`
}

type queryResult struct {
	QueryText           string               `json:"queryText"`
	Parameters          map[string]any       `json:"parameters"`
	FulfillmentText     string               `json:"fulfillmentText"`
	FulfillmentMessages []fulfillmentMessage `json:"fulfillmentMessages"`
	Intent              struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	} `json:"intent"`
}

type fulfillmentMessage struct {
	Text *fulfillmentText `json:"text"`
}

type fulfillmentText struct {
	Text []string `json:"text"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// DetectIntent sends utterance to the Dialogflow agent and returns the
// structured result. A response with no fulfillment messages is not an
// error; it yields an empty fulfillment text for the caller to degrade.
func (s *DialogflowService) DetectIntent(ctx context.Context, sessionID, utterance string) (models.NLUResult, error) {
	reqBody := detectIntentRequest{
		QueryInput: queryInput{
			Text: textInput{Text: utterance, LanguageCode: s.languageCode},
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return models.NLUResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/projects/%s/agent/sessions/%s:detectIntent", s.baseURL, s.projectID, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return models.NLUResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return models.NLUResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.NLUResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var gerr googleError
		if json.Unmarshal(body, &gerr) == nil && gerr.Error.Message != "" {
			return models.NLUResult{}, fmt.Errorf("dialogflow API error (status %d): %s", resp.StatusCode, gerr.Error.Message)
		}
		return models.NLUResult{}, fmt.Errorf("dialogflow API error (status %d): %s", resp.StatusCode, string(body))
	}

	var out detectIntentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return models.NLUResult{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	params := flattenParams(out.QueryResult.Parameters)
	return models.NLUResult{
		FulfillmentText: firstFulfillmentText(out.QueryResult),
		IntentName:      out.QueryResult.Intent.DisplayName,
		Parameters:      params,
		Location:        params[models.ParamLocation],
		Date:            params[models.ParamDate],
		Time:            params[models.ParamTime],
	}, nil
}

// firstFulfillmentText pulls the first line of the agent's canned reply,
// falling back to the flat fulfillmentText field.
func firstFulfillmentText(qr queryResult) string {
	for _, m := range qr.FulfillmentMessages {
		if m.Text != nil && len(m.Text.Text) > 0 {
			return m.Text.Text[0]
		}
	}
	return qr.FulfillmentText
}

// flattenParams reduces Dialogflow's free-form parameter values to
// strings keyed by parameter name. Empty values are dropped so presence
// checks stay simple.
func flattenParams(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s := flattenValue(v); s != "" {
			out[k] = s
		}
	}
	return out
}

func flattenValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any:
		// Struct parameters like date-time carry the value under date_time.
		if s, ok := val["date_time"].(string); ok {
			return s
		}
		// Fallback for other struct parameters: first non-empty field in
		// key order, so the chosen value is stable.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := flattenValue(val[k]); s != "" {
				return s
			}
		}
	case []any:
		if len(val) > 0 {
			return flattenValue(val[0])
		}
	}
	return ""
}
