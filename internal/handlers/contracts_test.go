package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plainclause/contract-analyzer-api/internal/analyzer"
	"github.com/plainclause/contract-analyzer-api/internal/config"
	"github.com/plainclause/contract-analyzer-api/internal/models"
	"github.com/plainclause/contract-analyzer-api/internal/router"
	"github.com/plainclause/contract-analyzer-api/internal/services"
	"github.com/plainclause/contract-analyzer-api/internal/testutil"
	"github.com/plainclause/contract-analyzer-api/internal/utils"
)

type stubService struct {
	result  *models.AnalysisResult
	err     error
	calls   int
	lastReq *models.UploadRequest
}

func (s *stubService) AnalyzeContract(ctx context.Context, req *models.UploadRequest) (*models.AnalysisResult, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testConfig() *config.Config {
	return &config.Config{
		CORSAllowOrigins: []string{"http://localhost:5173"},
		MaxFileSize:      5 << 20,
	}
}

func newTestRouter(svc services.ContractService) http.Handler {
	return router.NewRouter(svc, testConfig(), utils.NewLogger("error"))
}

// uploadRequest builds a multipart POST with a single "file" part.
func uploadRequest(t *testing.T, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze-contract/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestAnalyzeContractSuccess(t *testing.T) {
	stub := &stubService{result: &models.AnalysisResult{
		OriginalFilename:   "lease.pdf",
		SimplifiedContract: "Plain English summary.",
		Cons:               []string{"Con one.", "Con two."},
	}}
	r := newTestRouter(stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "lease.pdf", "application/pdf", testutil.BuildPDF("contract text")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, *stub.result, result)

	require.Equal(t, 1, stub.calls)
	assert.Equal(t, "lease.pdf", stub.lastReq.Filename)
	assert.NotEmpty(t, stub.lastReq.File)
}

func TestAnalyzeContractEmptyConsSerializesAsArray(t *testing.T) {
	stub := &stubService{result: &models.AnalysisResult{
		OriginalFilename:   "a.pdf",
		SimplifiedContract: "Summary.",
		Cons:               []string{},
	}}
	r := newTestRouter(stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "a.pdf", "application/pdf", []byte("%PDF-1.4 data")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cons":[]`)
}

func TestAnalyzeContractRejectsNonPDFExtension(t *testing.T) {
	stub := &stubService{}
	r := newTestRouter(stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "contract.txt", "text/plain", []byte("plain text")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "Only PDF files are accepted")
	assert.Equal(t, 0, stub.calls, "pipeline must not run for rejected uploads")
}

func TestAnalyzeContractRejectsWrongContentType(t *testing.T) {
	stub := &stubService{}
	r := newTestRouter(stub)

	// .pdf name but declared as text: rejected before any extraction
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "contract.pdf", "text/plain", []byte("not really a pdf")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "Expected application/pdf")
	assert.Equal(t, 0, stub.calls)
}

func TestAnalyzeContractContentTypeWithParameters(t *testing.T) {
	stub := &stubService{result: &models.AnalysisResult{OriginalFilename: "a.pdf", SimplifiedContract: "S.", Cons: []string{}}}
	r := newTestRouter(stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "a.pdf", "application/pdf; charset=binary", []byte("data")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, stub.calls)
}

func TestAnalyzeContractMissingFile(t *testing.T) {
	stub := &stubService{}
	r := newTestRouter(stub)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("note", "no file here"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze-contract/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "No file provided")
	assert.Equal(t, 0, stub.calls)
}

func TestAnalyzeContractEmptyFile(t *testing.T) {
	stub := &stubService{}
	r := newTestRouter(stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "empty.pdf", "application/pdf", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "empty")
	assert.Equal(t, 0, stub.calls)
}

func TestAnalyzeContractOversizedUpload(t *testing.T) {
	stub := &stubService{}
	cfg := testConfig()
	cfg.MaxFileSize = 1 << 10 // 1KB for the test
	r := router.NewRouter(stub, cfg, utils.NewLogger("error"))

	big := bytes.Repeat([]byte("x"), 4<<10)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "big.pdf", "application/pdf", big))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "File size exceeds")
	assert.Equal(t, 0, stub.calls)
}

func TestAnalyzeContractServiceError(t *testing.T) {
	stub := &stubService{err: utils.NewBadGatewayError("The analysis service could not process the contract. Please try again.")}
	r := newTestRouter(stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "lease.pdf", "application/pdf", []byte("data")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decodeError(t, rec), "could not process the contract")
}

func TestAnalyzeContractUnknownErrorIsSanitized(t *testing.T) {
	stub := &stubService{err: fmt.Errorf("dial tcp: key sk-secret leaked in wrapped error")}
	r := newTestRouter(stub)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "lease.pdf", "application/pdf", []byte("data")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rec))
	assert.NotContains(t, rec.Body.String(), "sk-secret")
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(&stubService{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodOptions, "/analyze-contract/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDisallowedOrigin(t *testing.T) {
	r := newTestRouter(&stubService{})

	req := httptest.NewRequest(http.MethodOptions, "/analyze-contract/", nil)
	req.Header.Set("Origin", "http://evil.example")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadWidgetServedAtRoot(t *testing.T) {
	r := newTestRouter(&stubService{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Contract Analyzer")
}

// End-to-end through the real extractor, service and analyzer, with only the
// provider mocked.
func TestAnalyzeContractEndToEnd(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "Landlord may enter without notice")

		content := `{"simplified_contract":"You pay no deposit, but the landlord can come in whenever they like.","cons":["Landlord may enter without notice is unusual."]}`
		body, err := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
		require.NoError(t, err)
		w.Write(body)
	}))
	defer provider.Close()

	logger := utils.NewLogger("error")
	llm := analyzer.NewOpenAIAnalyzer("test-key", "gpt-4o-mini", provider.URL, 5*time.Second, logger)
	svc := services.NewService(llm, logger)
	r := router.NewRouter(svc, testConfig(), logger)

	pdf := testutil.BuildPDF("Tenant shall pay $0 deposit. Landlord may enter without notice.")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, uploadRequest(t, "lease.pdf", "application/pdf", pdf))

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, models.AnalysisResult{
		OriginalFilename:   "lease.pdf",
		SimplifiedContract: "You pay no deposit, but the landlord can come in whenever they like.",
		Cons:               []string{"Landlord may enter without notice is unusual."},
	}, result)
}
