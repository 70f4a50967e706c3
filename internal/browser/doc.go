// Package browser is tabprune's view of the host browser: the live set of
// tabs, the operations tabprune performs on them, and the tab events it
// reacts to.
//
// Registry is the abstraction the rest of tabprune depends on. RodRegistry
// implements it against a Chromium-family browser over the DevTools protocol;
// browsertest.Registry is an in-memory fake for tests.
//
// Example usage:
//
//	reg, err := browser.Connect(ctx, browser.Config{DebuggerURL: "ws://127.0.0.1:9222/devtools/browser/..."}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer reg.Close()
//
//	tabs, err := reg.Tabs(ctx)
package browser
