package pyrunner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dcSpark/shinkai-code-runner/internal/protocol"
)

// escapeForPythonLiteral escapes a JSON string so it can be embedded
// inside a single-quoted Python string literal. Order matters: the
// backslash must be doubled before either quote character is escaped,
// or the quote escapes themselves would be re-escaped.
func escapeForPythonLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// taggedJSON wraps a JSON object with a py/object discriminator in the
// shape jsonpickle expects, so the harness can hand the raw string
// straight to jsonpickle.decode and get back an instance of the named
// __main__ class (CONFIG or INPUTS, both dict subclasses, so user code
// can still subscript them like plain dicts). Non-object values (an
// array, a scalar, null) can't carry a py/object tag meaningfully and
// are passed through untagged; the harness falls back to plain
// json.loads for those.
func taggedJSON(pyObject string, value json.RawMessage) (string, error) {
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(value, &fields); err != nil {
		return string(value), nil
	}
	fields["py/object"] = json.RawMessage(`"` + pyObject + `"`)
	encoded, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("pyrunner: encode %s: %w", pyObject, err)
	}
	return string(encoded), nil
}

// harnessTemplate wraps the user entrypoint module with a driver that
// decodes configuration and parameters, calls run(), awaits a
// coroutine result if one comes back, serializes the result with a
// permissive fallback encoder, and prints it between result sentinels.
const harnessTemplate = `
import asyncio
import importlib.util
import inspect
import json

import jsonpickle

_CONFIG_JSON = '%s'
_PARAMS_JSON = '%s'


class CONFIG(dict):
    pass


class INPUTS(dict):
    pass


def _decode(tagged_json):
    if '"py/object"' in tagged_json:
        return jsonpickle.decode(tagged_json)
    return json.loads(tagged_json)


def _default_encode(obj):
    if isinstance(obj, dict):
        return {str(k): _default_encode(v) for k, v in obj.items()}
    if isinstance(obj, (list, tuple)):
        return [_default_encode(v) for v in obj]
    if isinstance(obj, set):
        return [_default_encode(v) for v in obj]
    if isinstance(obj, bytes):
        return obj.decode("utf-8", errors="replace")
    if hasattr(obj, "__dict__"):
        return _default_encode(vars(obj))
    try:
        iter(obj)
        return [_default_encode(v) for v in obj]
    except TypeError:
        return str(obj)


class _ResultEncoder(json.JSONEncoder):
    def default(self, obj):
        return _default_encode(obj)


def _load_entrypoint(path):
    spec = importlib.util.spec_from_file_location("__main__.entrypoint", path)
    module = importlib.util.module_from_spec(spec)
    spec.loader.exec_module(module)
    return module


def _main():
    configurations = _decode(_CONFIG_JSON)
    parameters = _decode(_PARAMS_JSON)

    module = _load_entrypoint(%s)
    result = module.run(configurations, parameters)
    if inspect.iscoroutine(result):
        result = asyncio.run(result)

    encoded = json.dumps(result, cls=_ResultEncoder)
    print("%s")
    print(encoded)
    print("%s")


if __name__ == "__main__":
    _main()
`

// BuildHarness renders the driver script for one run: configurations
// and parameters are JSON-encoded, py/object-tagged, and escaped for
// embedding as Python string literals; entrypointPath is the path of
// the user's module relative to the child's working directory.
func BuildHarness(entrypointPath string, configurations, parameters json.RawMessage) (string, error) {
	configJSON, err := taggedJSON("__main__.CONFIG", configurations)
	if err != nil {
		return "", err
	}
	paramsJSON, err := taggedJSON("__main__.INPUTS", parameters)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		harnessTemplate,
		escapeForPythonLiteral(configJSON),
		escapeForPythonLiteral(paramsJSON),
		fmt.Sprintf("%q", entrypointPath),
		protocol.PythonResultOpen,
		protocol.PythonResultClose,
	), nil
}
