package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/cryguy/mapengine/internal/core"
)

// emitSinkName is the Go callback the bootstrap captures and hides. It
// receives one JSON array of value descriptors per emit call.
const emitSinkName = "__map_emit"

// bootstrapJS installs emit, the per-context registry and the invoke
// trampoline. %d is the result capacity: describe stops once an emit call
// would need more than capacity+1 tokens so cyclic or oversized values
// cannot grow the descriptor without bound.
//
// Descriptors: ["s",str] ["i",int] ["f",num|"NaN"|"Infinity"|"-Infinity"|"-0"]
// ["b",bool] ["a",[...]] ["m",coercion,[k,v,...]] ["u"] ["o",json] ["t"].
const bootstrapJS = `(function() {
	var g = globalThis;
	var sink = g.%[1]s;
	delete g.%[1]s;
	var limit = %[2]d + 1;

	function describe(v, b) {
		if (b.n >= limit) return ["t"];
		switch (typeof v) {
		case "string":
			b.n++;
			return ["s", v];
		case "number":
			b.n++;
			if (v === (v | 0) || v === (v >>> 0)) {
				if (v === 0 && 1 / v < 0) return ["f", "-0"];
				return ["i", v];
			}
			if (v !== v) return ["f", "NaN"];
			if (v === Infinity) return ["f", "Infinity"];
			if (v === -Infinity) return ["f", "-Infinity"];
			return ["f", v];
		case "boolean":
			b.n++;
			return ["b", v];
		case "undefined":
			b.n++;
			return ["u"];
		case "symbol":
		case "bigint":
			return null;
		}
		if (v === null) {
			b.n++;
			return ["u"];
		}
		if (Array.isArray(v)) {
			b.n += 2;
			var elems = [];
			for (var i = 0; i < v.length; i++) {
				var d = describe(v[i], b);
				if (d === null) continue;
				elems.push(d);
				if (d[0] === "t") break;
			}
			return ["a", elems];
		}
		if (typeof Map === "function" && v instanceof Map) {
			b.n += 2;
			var coercion = (+v) | 0;
			var kv = [];
			var stop = false;
			v.forEach(function(val, key) {
				if (stop) return;
				var pair = [key, val];
				for (var j = 0; j < 2 && !stop; j++) {
					var d = describe(pair[j], b);
					if (d === null) continue;
					kv.push(d);
					if (d[0] === "t") stop = true;
				}
			});
			return ["m", coercion, kv];
		}
		b.n++;
		var s = JSON.stringify(v);
		return ["o", s === undefined ? "undefined" : s];
	}

	g.emit = function() {
		var b = { n: 0 };
		var out = [];
		for (var i = 0; i < arguments.length; i++) {
			var d = describe(arguments[i], b);
			if (d === null) continue;
			out.push(d);
			if (d[0] === "t") break;
		}
		sink(JSON.stringify(out));
	};

	var registry = Object.create(null);

	g.__map_register = function(path) {
		var fn = g.OnMap;
		if (typeof fn !== "function") return false;
		registry[path] = fn;
		return true;
	};

	g.__map_invoke = function(path, meta, docText) {
		var fn = registry[path];
		if (typeof fn !== "function") return false;
		fn(meta, JSON.parse(docText));
		return true;
	};
})();`

// clearEntryJS drops the entry point left by the previous load so a script
// without OnMap cannot pick up a stale one. Registration reads OnMap as a
// property of the global object, so let and const bindings never count.
const clearEntryJS = `globalThis.OnMap = undefined;`

func bootstrapSource(capacity int) string {
	return fmt.Sprintf(bootstrapJS, emitSinkName, capacity)
}

func registerJS(path string) string {
	p, _ := json.Marshal(path)
	return fmt.Sprintf("globalThis.__map_register(%s)", p)
}

// invokeJS builds the call for one invocation. The document travels as a
// string literal and is parsed by JSON.parse inside the context.
func invokeJS(path string, meta core.Metadata, doc []byte) string {
	p, _ := json.Marshal(path)
	m, _ := json.Marshal(meta)
	d, _ := json.Marshal(string(doc))
	return fmt.Sprintf("globalThis.__map_invoke(%s, %s, %s)", p, m, d)
}
