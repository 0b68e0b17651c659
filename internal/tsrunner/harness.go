package tsrunner

import (
	"encoding/json"
	"fmt"

	"github.com/dcSpark/shinkai-code-runner/internal/protocol"
)

// harnessFileName is the synthesized module written next to the
// entrypoint. It carries the full entrypoint source plus the epilogue,
// so the user's relative imports still resolve while the pristine
// entrypoint stays untouched for subsequent runs.
const harnessFileName = "__coderunner_harness__.ts"

// BuildRunHarness appends the run-mode epilogue to the entrypoint
// source: decode configurations and parameters from embedded JSON
// string literals, invoke run(), and print the JSON-stringified result
// between tool-result sentinels. Top-level await drives an async run.
func BuildRunHarness(source string, configurations, parameters json.RawMessage) (string, error) {
	cfgLit, err := jsStringLiteral(configurations)
	if err != nil {
		return "", fmt.Errorf("tsrunner: encode configurations: %w", err)
	}
	paramLit, err := jsStringLiteral(parameters)
	if err != nil {
		return "", fmt.Errorf("tsrunner: encode parameters: %w", err)
	}
	return fmt.Sprintf(`%s

const configurations = JSON.parse(%s);
const parameters = JSON.parse(%s);

const result = await run(configurations, parameters);
console.log("%s");
console.log(JSON.stringify(result));
console.log("%s");
`, source, cfgLit, paramLit, protocol.ToolResultOpen, protocol.ToolResultClose), nil
}

// BuildDefinitionHarness appends the definition-extraction epilogue:
// the entrypoint is expected to declare a definition value, which is
// stringified between tool-definition sentinels without invoking run.
func BuildDefinitionHarness(source string) string {
	return fmt.Sprintf(`%s

console.log("%s");
console.log(JSON.stringify(definition));
console.log("%s");
`, source, protocol.ToolDefinitionOpen, protocol.ToolDefinitionClose)
}

// jsStringLiteral renders raw JSON as a JavaScript string literal whose
// contents are the JSON text, safe to hand to JSON.parse regardless of
// quotes or backslashes inside the value.
func jsStringLiteral(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	lit, err := json.Marshal(string(raw))
	if err != nil {
		return "", err
	}
	return string(lit), nil
}
