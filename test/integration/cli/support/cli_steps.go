package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cucumber/godog"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/MeKo-Tech/tiresias/cmd/tiresias/cmd"
	"github.com/MeKo-Tech/tiresias/internal/ocr"
)

// aGalleryPlanWith writes the plan used by every later command.
func (testCtx *TestContext) aGalleryPlanWith(ids string) error {
	path := filepath.Join(testCtx.TempDir, "plan", "galeries.shp")
	if err := writePlan(path, splitList(ids)); err != nil {
		return err
	}
	testCtx.Shapefile = path
	return nil
}

// theOCREngineReads replaces the OCR engine of the next commands with one
// that reads the given comma separated texts.
func (testCtx *TestContext) theOCREngineReads(texts string) error {
	testCtx.scripted().set(splitList(texts))
	return nil
}

func (testCtx *TestContext) theOCREngineReadsOnWidth(texts string, width int) error {
	testCtx.scripted().setForWidth(width, splitList(texts))
	return nil
}

func (testCtx *TestContext) scripted() *scriptedEngine {
	if testCtx.engine == nil {
		testCtx.engine = newScriptedEngine()
	}
	return testCtx.engine
}

func (testCtx *TestContext) aPhotoOfSize(name string, w, h int) error {
	return writePhoto(name, w, h)
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	return testCtx.SetEnv(name, value)
}

func (testCtx *TestContext) aFileContaining(name string, content *godog.DocString) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return err
	}
	return os.WriteFile(name, []byte(content.Content), 0o600)
}

// iRunCommand runs the command tree in-process. The plan of the scenario is
// passed with --shapefile unless the command names one.
func (testCtx *TestContext) iRunCommand(command string) error {
	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "tiresias" {
		args = args[1:]
	}
	named := slices.ContainsFunc(args, func(a string) bool { return strings.HasPrefix(a, "--shapefile") })
	if testCtx.Shapefile != "" && !named {
		args = append(args, "--shapefile", testCtx.Shapefile)
	}

	var out, errOut bytes.Buffer
	var opts []cmd.Option
	if testCtx.engine != nil {
		eng := testCtx.engine
		opts = append(opts, cmd.WithEngineFactory(func(ocr.Config) (ocr.Engine, error) { return eng, nil }))
	}
	root := cmd.NewRootCommand(opts...)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())

	testCtx.LastCommand = command
	testCtx.LastOutput = out.String()
	testCtx.LastStderr = errOut.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0
	if err != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr:\n%s", testCtx.LastCommand, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded, output:\n%s", testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(s string) error {
	if !strings.Contains(testCtx.LastOutput, s) {
		return fmt.Errorf("output does not contain %q:\n%s", s, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputLinesShouldBe(lines *godog.DocString) error {
	want := strings.TrimSpace(lines.Content)
	got := strings.TrimSpace(testCtx.LastOutput)
	if got != want {
		return fmt.Errorf("output mismatch\nwant:\n%s\ngot:\n%s", want, got)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(s string) error {
	if testCtx.LastError == nil {
		return errors.New("command did not fail")
	}
	if !strings.Contains(testCtx.LastError.Error(), s) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, s)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(name); err != nil {
		return fmt.Errorf("file %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldBeAPNG(name string) error {
	f, err := os.Open(name) //nolint:gosec // G304: scenario directory
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := png.DecodeConfig(f); err != nil {
		return fmt.Errorf("%s is not a PNG: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldBeAPDFWithPages(name string, pages int) error {
	n, err := api.PageCountFile(name)
	if err != nil {
		return err
	}
	if n != pages {
		return fmt.Errorf("%s has %d pages, want %d", name, n, pages)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldBeGeoJSONWithFeatures(name string, count int) error {
	data, err := os.ReadFile(name) //nolint:gosec // G304: scenario directory
	if err != nil {
		return err
	}
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("%s is not JSON: %w", name, err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != count {
		return fmt.Errorf("%s: type %q with %d features, want FeatureCollection with %d", name, fc.Type, len(fc.Features), count)
	}
	return nil
}

// RegisterCLISteps registers the command line steps.
func (testCtx *TestContext) RegisterCLISteps(sc *godog.ScenarioContext) {
	sc.Step(`^a gallery plan with galleries "([^"]*)"$`, testCtx.aGalleryPlanWith)
	sc.Step(`^a photo "([^"]*)" of (\d+)x(\d+) pixels$`, testCtx.aPhotoOfSize)
	sc.Step(`^the OCR engine reads "([^"]*)"$`, testCtx.theOCREngineReads)
	sc.Step(`^the OCR engine reads "([^"]*)" on photos (\d+) pixels wide$`, testCtx.theOCREngineReadsOnWidth)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileContaining)

	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should be:$`, testCtx.theOutputLinesShouldBe)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should be a PNG image$`, testCtx.theFileShouldBeAPNG)
	sc.Step(`^the file "([^"]*)" should be a PDF with (\d+) pages?$`, testCtx.theFileShouldBeAPDFWithPages)
	sc.Step(`^the file "([^"]*)" should be GeoJSON with (\d+) features$`, testCtx.theFileShouldBeGeoJSONWithFeatures)
}
