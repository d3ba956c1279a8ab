package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"Probekit/internal/clients"
	"Probekit/internal/domain"
	"Probekit/internal/threshold"

	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v3"
)

type CucumberConfig struct {
	Name          string
	Handler       string
	MetricHandler string
	MetricPrefix  string
	Command       string
	WorkingDir    string
	Timeout       time.Duration
	Env           []string
	EventData     []string
	Attachments   string
	Socket        string
}

func (c *CucumberConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Name, "name", "n", "", "Name to use in events")
	fs.StringVarP(&c.Handler, "handler", "h", "", "Handler to use for events")
	fs.StringVarP(&c.MetricHandler, "metric-handler", "m", "", "Handler to use for metric events")
	fs.StringVarP(&c.MetricPrefix, "metric-prefix", "p", "", "Metric prefix to use with metric paths in events")
	fs.StringVarP(&c.Command, "command", "c", "", "Cucumber command line, including arguments")
	fs.StringVarP(&c.WorkingDir, "working-dir", "w", "", "Working directory to use with Cucumber")
	fs.DurationVarP(&c.Timeout, "timeout", "t", 0, "Time to wait before killing the Cucumber process (0 waits forever)")
	fs.StringArrayVar(&c.Env, "env", nil, "NAME=VALUE environment variable passed to Cucumber, repeatable")
	fs.StringArrayVarP(&c.EventData, "event-data", "d", nil, "NAME=VALUE custom data added to raised events, repeatable")
	fs.StringVarP(&c.Attachments, "attachments", "a", "true", "Include Cucumber attachments in events (true|false)")
	fs.StringVar(&c.Socket, "socket", "127.0.0.1:3030", "Local client socket receiving scenario events")
}

type resultSender interface {
	Send(ctx context.Context, result clients.SocketResult) error
}

// CucumberCheck runs a Cucumber suite with the JSON formatter, raises one
// event per scenario on the local client socket and summarises the run.
type CucumberCheck struct {
	cfg         CucumberConfig
	attachments bool
	eventData   map[string]interface{}
	sender      resultSender
	log         *slog.Logger
	now         func() time.Time

	// execute runs the suite and returns its stdout and exit code.
	execute func(ctx context.Context) ([]byte, int, error)
}

func NewCucumberCheck(cfg CucumberConfig, log *slog.Logger) (*CucumberCheck, error) {
	switch {
	case cfg.Name == "":
		return nil, domain.InvalidConfig("No name specified")
	case cfg.Handler == "":
		return nil, domain.InvalidConfig("No handler specified")
	case cfg.MetricHandler == "":
		return nil, domain.InvalidConfig("No metric handler specified")
	case cfg.MetricPrefix == "":
		return nil, domain.InvalidConfig("No metric prefix specified")
	case cfg.Command == "":
		return nil, domain.InvalidConfig("No cucumber command line specified")
	case cfg.WorkingDir == "":
		return nil, domain.InvalidConfig("No working directory specified")
	}

	attachments, err := strconv.ParseBool(cfg.Attachments)
	if err != nil || (cfg.Attachments != "true" && cfg.Attachments != "false") {
		return nil, domain.InvalidConfig("Attachments argument is not a valid boolean")
	}

	eventData := make(map[string]interface{}, len(cfg.EventData))
	for _, item := range cfg.EventData {
		name, value, _ := strings.Cut(item, "=")
		eventData[name] = coerceEventValue(value)
	}

	c := &CucumberCheck{
		cfg:         cfg,
		attachments: attachments,
		eventData:   eventData,
		sender:      clients.NewSocketClient(cfg.Socket, 10*time.Second),
		log:         log,
		now:         time.Now,
	}
	c.execute = func(ctx context.Context) ([]byte, int, error) {
		return runShell(ctx, cfg.Command, cfg.WorkingDir, cfg.Env)
	}
	return c, nil
}

var (
	intValue   = regexp.MustCompile(`^-?[0-9]+$`)
	floatValue = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
)

func coerceEventValue(value string) interface{} {
	switch {
	case intValue.MatchString(value):
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	case floatValue.MatchString(value):
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case value == "true":
		return true
	case value == "false":
		return false
	}
	return value
}

func (c *CucumberCheck) Name() string { return "CheckCucumber" }

// Timeout disables the harness deadline; the suite enforces its own.
func (c *CucumberCheck) Timeout() time.Duration { return c.cfg.Timeout }

type cucumberStep struct {
	Keyword string `json:"keyword"`
	Name    string `json:"name"`
	Result  *struct {
		Status       string   `json:"status"`
		Duration     *float64 `json:"duration"`
		ErrorMessage *string  `json:"error_message"`
	} `json:"result"`
}

type cucumberScenario struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Steps []cucumberStep `json:"steps"`
}

type cucumberSummary struct {
	Status    string           `yaml:"status"`
	Scenarios int              `yaml:"scenarios"`
	Passed    int              `yaml:"passed,omitempty"`
	Failed    int              `yaml:"failed,omitempty"`
	Pending   int              `yaml:"pending,omitempty"`
	Undefined int              `yaml:"undefined,omitempty"`
	Errors    []cucumberFailed `yaml:"errors,omitempty"`
}

type cucumberFailed struct {
	Message string `yaml:"message"`
	Error   string `yaml:"error,omitempty"`
}

type scenarioOutput struct {
	Status string       `yaml:"status"`
	Steps  []stepOutput `yaml:"steps"`
}

type stepOutput struct {
	Step  string  `yaml:"step"`
	Error *string `yaml:"error,omitempty"`
}

func (c *CucumberCheck) Run(ctx context.Context) (domain.Result, error) {
	runCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	stdout, code, err := c.execute(runCtx)
	if err != nil {
		if domain.KindOf(err) == domain.KindTimeout {
			return c.unknownError(fmt.Sprintf("Cucumber exceeded the timeout of %s", c.cfg.Timeout)), nil
		}
		return c.unknownError(err.Error()), nil
	}
	c.log.Debug("cucumber finished", "exit_status", code, "results", string(stdout))

	if code != 0 && code != 1 {
		return c.unknownError(fmt.Sprintf("Cucumber returned exit code %d", code)), nil
	}

	var features []map[string]json.RawMessage
	if err := json.Unmarshal(stdout, &features); err != nil {
		return c.unknownError(fmt.Sprintf("Cucumber results are not valid JSON: %v", err)), nil
	}

	summary := cucumberSummary{Status: "ok"}
	timestamp := c.now().UTC().Unix()
	var events []clients.SocketResult

	for _, feature := range features {
		var elements []json.RawMessage
		if raw, ok := feature["elements"]; ok {
			if err := json.Unmarshal(raw, &elements); err != nil {
				return c.unknownError(fmt.Sprintf("malformed feature elements: %v", err)), nil
			}
		}

		for _, rawScenario := range elements {
			var scenario cucumberScenario
			if err := json.Unmarshal(rawScenario, &scenario); err != nil {
				return c.unknownError(fmt.Sprintf("malformed scenario: %v", err)), nil
			}
			if scenario.Type != "scenario" {
				continue
			}

			name := ScenarioName(scenario.ID, featureProfile(feature))
			eventName := c.cfg.Name + "." + name
			status := scenarioStatus(scenario)

			event, err := c.scenarioEvent(eventName, feature, rawScenario, scenario, status)
			if err != nil {
				return c.unknownError(err.Error()), nil
			}
			events = append(events, event)

			if metrics := c.scenarioMetrics(name, scenario, status, timestamp); metrics != "" {
				events = append(events, clients.SocketResult{
					Name:     eventName + ".metrics",
					Type:     "metric",
					Handlers: []string{c.cfg.MetricHandler},
					Output:   metrics,
					Status:   domain.StatusOK,
				})
			}

			summary.Scenarios++
			switch status {
			case "passed":
				summary.Passed++
			case "failed":
				summary.Failed++
			case "pending":
				summary.Pending++
			case "undefined":
				summary.Undefined++
			}
		}
	}

	for _, event := range events {
		if err := c.sender.Send(ctx, event); err != nil {
			summary.Errors = append(summary.Errors, cucumberFailed{
				Message: "Failed to raise event " + event.Name,
				Error:   err.Error(),
			})
		}
	}

	status := domain.StatusOK
	switch {
	case len(summary.Errors) > 0:
		status, summary.Status = domain.StatusUnknown, "unknown"
	case summary.Scenarios == 0:
		status, summary.Status = domain.StatusWarning, "warning"
	}

	return domain.NewResult(status, "%s", dumpYAML(summary)), nil
}

func (c *CucumberCheck) unknownError(message string) domain.Result {
	return domain.Unknown("%s", dumpYAML(cucumberSummary{
		Status: "unknown",
		Errors: []cucumberFailed{{Message: message}},
	}))
}

func (c *CucumberCheck) scenarioEvent(name string, feature map[string]json.RawMessage, raw json.RawMessage, scenario cucumberScenario, status string) (clients.SocketResult, error) {
	if !c.attachments {
		stripped, err := stripEmbeddings(raw)
		if err != nil {
			return clients.SocketResult{}, err
		}
		raw = stripped
	}

	featureCopy := make(map[string]json.RawMessage, len(feature))
	for k, v := range feature {
		featureCopy[k] = v
	}
	elements, err := json.Marshal([]json.RawMessage{raw})
	if err != nil {
		return clients.SocketResult{}, err
	}
	featureCopy["elements"] = elements

	extra := make(map[string]interface{}, len(c.eventData)+1)
	for k, v := range c.eventData {
		extra[k] = v
	}
	extra["results"] = []map[string]json.RawMessage{featureCopy}

	return clients.SocketResult{
		Name:     name,
		Handlers: []string{c.cfg.Handler},
		Status:   scenarioStatusCode(status),
		Output:   dumpYAML(stepsOutput(scenario, status)),
		Extra:    extra,
	}, nil
}

func (c *CucumberCheck) scenarioMetrics(name string, scenario cucumberScenario, status string, timestamp int64) string {
	if status != "passed" || len(scenario.Steps) == 0 {
		return ""
	}

	prefix := c.cfg.MetricPrefix + "." + name
	var steps []string
	var total float64
	for i, step := range scenario.Steps {
		if step.Result == nil || step.Result.Duration == nil {
			continue
		}
		d := *step.Result.Duration
		total += d
		steps = append(steps, fmt.Sprintf("%s.step-%d.duration %s %d", prefix, i+1, threshold.FormatValue(d), timestamp))
	}
	if len(steps) == 0 {
		return ""
	}

	lines := []string{
		fmt.Sprintf("%s.duration %s %d", prefix, threshold.FormatValue(total), timestamp),
		fmt.Sprintf("%s.step-count %d %d", prefix, len(scenario.Steps), timestamp),
	}
	return strings.Join(append(lines, steps...), "\n")
}

func featureProfile(feature map[string]json.RawMessage) *string {
	raw, ok := feature["profile"]
	if !ok {
		return nil
	}
	var profile string
	if err := json.Unmarshal(raw, &profile); err != nil {
		profile = string(raw)
	}
	return &profile
}

var (
	nonPathChars   = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	leadingDots    = regexp.MustCompile(`^\.+`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	repeatedDots   = regexp.MustCompile(`\.+`)
	repeatedDashes = regexp.MustCompile(`-+`)
)

// ScenarioName turns a Cucumber scenario id (and optional profile) into a
// dot-separated metric path segment.
func ScenarioName(id string, profile *string) string {
	name := id
	if profile != nil {
		name += ";" + *profile
	}

	name = strings.ReplaceAll(name, ".", "-")
	name = strings.ReplaceAll(name, ";", ".")
	name = nonPathChars.ReplaceAllString(name, "-")
	name = leadingDots.ReplaceAllString(name, "")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedDots.ReplaceAllString(name, ".")

	var parts []string
	for _, part := range strings.Split(name, ".") {
		part = strings.Trim(part, "-")
		part = repeatedDashes.ReplaceAllString(part, "-")
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ".")
}

func scenarioStatus(scenario cucumberScenario) string {
	for _, step := range scenario.Steps {
		if step.Result == nil {
			continue
		}
		switch step.Result.Status {
		case "failed", "pending", "undefined":
			return step.Result.Status
		}
	}
	return "passed"
}

func scenarioStatusCode(status string) domain.Status {
	switch status {
	case "passed":
		return domain.StatusOK
	case "failed":
		return domain.StatusCritical
	default:
		return domain.StatusWarning
	}
}

func stepsOutput(scenario cucumberScenario, status string) scenarioOutput {
	out := scenarioOutput{Status: status, Steps: make([]stepOutput, 0, len(scenario.Steps))}
	for i, step := range scenario.Steps {
		stepStatus := "UNKNOWN"
		var stepErr *string
		if step.Result != nil {
			stepStatus = strings.ToUpper(step.Result.Status)
			stepErr = step.Result.ErrorMessage
		}
		out.Steps = append(out.Steps, stepOutput{
			Step:  fmt.Sprintf("%s - %d - %s%s", stepStatus, i+1, step.Keyword, step.Name),
			Error: stepErr,
		})
	}
	return out
}

func stripEmbeddings(raw json.RawMessage) (json.RawMessage, error) {
	var scenario map[string]interface{}
	if err := json.Unmarshal(raw, &scenario); err != nil {
		return nil, err
	}
	if steps, ok := scenario["steps"].([]interface{}); ok {
		for _, s := range steps {
			if step, ok := s.(map[string]interface{}); ok {
				if _, has := step["embeddings"]; has {
					step["embeddings"] = []interface{}{}
				}
			}
		}
	}
	return json.Marshal(scenario)
}

func dumpYAML(v interface{}) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("status: unknown\nerrors:\n- message: %q\n", err.Error())
	}
	return string(out)
}
