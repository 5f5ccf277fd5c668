package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/locate"
	"github.com/MeKo-Tech/tiresias/internal/render"
	"github.com/MeKo-Tech/tiresias/internal/server"
)

// HTTPTestServer wraps the API server running on an httptest listener.
type HTTPTestServer struct {
	HTTP *httptest.Server
	API  *server.Server
}

// Close stops the listener and releases the server.
func (s *HTTPTestServer) Close() {
	s.HTTP.Close()
	_ = s.API.Close()
}

func (testCtx *TestContext) startServer(cfg server.Config) error {
	if testCtx.Shapefile == "" {
		return errors.New("no gallery plan in this scenario")
	}
	ds, err := gallery.Load(testCtx.Shapefile, gallery.Options{})
	if err != nil {
		return err
	}
	style := render.DefaultStyle()
	style.PanelSize = 128
	loc, err := locate.NewBuilder().
		WithEngine(testCtx.scripted()).
		WithCatalogue(ds.Catalogue).
		WithStyle(style).
		WithFigures(true).
		Build()
	if err != nil {
		return err
	}
	cfg.Version = "test"
	api, err := server.NewServer(cfg, loc)
	if err != nil {
		return err
	}
	testCtx.Server = &HTTPTestServer{HTTP: httptest.NewServer(api.Handler()), API: api}
	return nil
}

func (testCtx *TestContext) aServerForThePlan() error {
	return testCtx.startServer(server.Config{})
}

func (testCtx *TestContext) aRateLimitedServer(perMinute int) error {
	return testCtx.startServer(server.Config{RateLimitEnabled: true, RequestsPerMinute: perMinute, RequestsPerHour: 1000})
}

func (testCtx *TestContext) record(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	if testCtx.Server == nil {
		return errors.New("no server running")
	}
	resp, err := http.Get(testCtx.Server.HTTP.URL + path) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

func (testCtx *TestContext) iUploadThePhotoTo(photo, path string) error {
	if testCtx.Server == nil {
		return errors.New("no server running")
	}
	data, err := os.ReadFile(photo) //nolint:gosec // G304: scenario directory
	if err != nil {
		return err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(photo))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	resp, err := http.Post(testCtx.Server.HTTP.URL+path, mw.FormDataContentType(), &body) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, want %d: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

// theJSONFieldShouldBe compares a dotted path of the JSON response. Arrays
// compare as their comma separated items.
func (testCtx *TestContext) theJSONFieldShouldBe(path, want string) error {
	var doc any
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	v := doc
	for _, key := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			v = node[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return fmt.Errorf("bad index %q in %s", key, path)
			}
			v = node[i]
		default:
			return fmt.Errorf("%s: cannot descend into %T", path, v)
		}
	}
	if got := flatten(v); got != want {
		return fmt.Errorf("%s is %q, want %q", path, got, want)
	}
	return nil
}

func flatten(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, flatten(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(x)
	}
}

// RegisterServerSteps registers the HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a tiresias server for the gallery plan$`, testCtx.aServerForThePlan)
	sc.Step(`^a tiresias server for the gallery plan limited to (\d+) requests? per minute$`, testCtx.aRateLimitedServer)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I upload the photo "([^"]*)" to "([^"]*)"$`, testCtx.iUploadThePhotoTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the JSON response field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
}
