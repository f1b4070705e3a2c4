package httpadapter

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
)

type indexPageData struct {
	Title       string
	Theme       domain.Theme
	OriginLabel string
	Instruction string
	Document    string
}

var indexPageTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="en" data-theme="{{.Theme}}">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>{{.Title}}</title>
    <style>
      :root {
        --bg: #f5f6fa;
        --panel: #ffffff;
        --text: #1b2030;
        --muted: #5d6680;
        --border: rgba(0, 0, 0, 0.12);
        --accent: #4f46e5;
        --bad: #e11d48;
        --good: #059669;
        --add: rgba(16, 185, 129, 0.18);
        --del: rgba(244, 63, 94, 0.18);
        --mono: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, "Liberation Mono", monospace;
        --sans: ui-sans-serif, system-ui, -apple-system, "Segoe UI", Roboto, Helvetica, Arial;
      }
      [data-theme="dark"] {
        --bg: #0b1020;
        --panel: #111832;
        --text: #e9edf7;
        --muted: #a5b0cc;
        --border: rgba(255, 255, 255, 0.10);
        --accent: #7aa2ff;
      }
      * { box-sizing: border-box; }
      html, body { height: 100%; margin: 0; }
      body { font-family: var(--sans); color: var(--text); background: var(--bg); }
      .app { display: grid; grid-template-columns: 340px 1fr 1fr; height: 100%; }
      .app.zen { grid-template-columns: 1fr; }
      .app.zen .sidebar, .app.zen .editor { display: none; }
      .sidebar { padding: 16px; border-right: 1px solid var(--border); background: var(--panel); display: flex; flex-direction: column; gap: 12px; overflow: auto; }
      .sidebar h1 { font-size: 18px; margin: 0; }
      .origin { font-size: 13px; color: var(--muted); min-height: 1.2em; }
      textarea, input[type=text] { width: 100%; font: inherit; color: inherit; background: var(--bg); border: 1px solid var(--border); border-radius: 8px; padding: 8px; }
      #instruction { min-height: 140px; resize: vertical; }
      .row { display: flex; gap: 8px; flex-wrap: wrap; }
      button { font: inherit; border: 1px solid var(--border); border-radius: 8px; padding: 6px 12px; background: var(--panel); color: var(--text); cursor: pointer; }
      button.primary { background: var(--accent); color: #fff; border-color: transparent; }
      button:disabled { opacity: 0.5; cursor: not-allowed; }
      .error { color: var(--bad); font-size: 13px; min-height: 1.2em; }
      .status { font-size: 12px; color: var(--muted); }
      .status.saved { color: var(--good); }
      .editor { display: flex; flex-direction: column; border-right: 1px solid var(--border); min-width: 0; }
      .toolbar { display: flex; gap: 8px; align-items: center; padding: 8px; border-bottom: 1px solid var(--border); background: var(--panel); }
      .toolbar .spacer { flex: 1; }
      #code { flex: 1; border: 0; border-radius: 0; font-family: var(--mono); font-size: 13px; resize: none; white-space: pre; }
      #diff { flex: 1; overflow: auto; margin: 0; font-family: var(--mono); font-size: 13px; display: none; }
      #diff .add { background: var(--add); }
      #diff .del { background: var(--del); }
      .editor.diffing #code { display: none; }
      .editor.diffing #diff { display: block; }
      .preview { display: flex; flex-direction: column; min-width: 0; }
      #frame { flex: 1; border: 0; background: #fff; width: 100%; }
    </style>
  </head>
  <body>
    <div class="app" id="app">
      <aside class="sidebar">
        <h1>{{.Title}}</h1>
        <div class="origin" id="origin">{{.OriginLabel}}</div>
        <textarea id="instruction" placeholder="Describe the page you want, or what to change...">{{.Instruction}}</textarea>
        <div class="row">
          <button class="primary" id="generate">Generate</button>
          <button id="refine">Refine</button>
        </div>
        <div class="error" id="error"></div>
        <div class="row">
          <input type="file" id="file" accept=".html,.htm,text/html" hidden />
          <button id="upload">Upload HTML</button>
          <button id="clear">Clear</button>
        </div>
        <input type="text" id="repo" placeholder="https://github.com/owner/repo" />
        <button id="clone">Import from GitHub</button>
      </aside>
      <section class="editor" id="editor">
        <div class="toolbar">
          <button id="toggle-diff">Diff</button>
          <button id="format">Format</button>
          <span class="spacer"></span>
          <span class="status" id="persistence"></span>
        </div>
        <textarea id="code" spellcheck="false">{{.Document}}</textarea>
        <pre id="diff"></pre>
      </section>
      <section class="preview">
        <div class="toolbar">
          <span class="status" id="operation"></span>
          <span class="spacer"></span>
          <button id="theme">Theme</button>
          <button id="zen">Zen</button>
        </div>
        <iframe id="frame" title="Preview" sandbox="allow-scripts allow-same-origin" src="/preview"></iframe>
      </section>
    </div>
    <script>
      (function () {
        const $ = (id) => document.getElementById(id);
        let state = null;
        let editTimer = null;
        let instructionTimer = null;

        function showError(message) { $("error").textContent = message || ""; }

        async function call(method, path, body) {
          showError("");
          const init = { method: method, headers: {} };
          if (body instanceof FormData) {
            init.body = body;
          } else if (body !== undefined) {
            init.headers["Content-Type"] = "application/json";
            init.body = JSON.stringify(body);
          }
          try {
            const res = await fetch(path, init);
            const payload = await res.json().catch(() => ({}));
            if (!res.ok) {
              showError(payload.error || ("Request failed with status " + res.status));
              return null;
            }
            render(payload);
            return payload;
          } catch (err) {
            showError("Network error: " + err.message);
            return null;
          }
        }

        function render(next) {
          state = next;
          document.documentElement.dataset.theme = next.theme;
          $("origin").textContent = next.origin_label;
          if (document.activeElement !== $("code") && $("code").value !== next.document) {
            $("code").value = next.document;
          }
          if (document.activeElement !== $("instruction") && $("instruction").value !== next.instruction) {
            $("instruction").value = next.instruction;
          }
          const busy = next.operation !== "idle";
          $("generate").disabled = busy || !$("instruction").value.trim();
          $("refine").disabled = busy || !$("instruction").value.trim() || !next.has_code;
          $("upload").disabled = busy;
          $("clone").disabled = busy;
          $("clear").disabled = busy;
          $("generate").textContent = next.operation === "generating" ? "Generating..." : "Generate";
          $("refine").textContent = next.operation === "refining" ? "Refining..." : "Refine";
          $("clone").textContent = next.operation === "cloning" ? "Importing..." : "Import from GitHub";
          $("operation").textContent = busy ? next.operation + "..." : "";
          renderPersistence(next.persistence);
          if ($("editor").classList.contains("diffing")) { renderDiff(); }
        }

        function renderPersistence(status) {
          const el = $("persistence");
          el.className = "status";
          if (status === "saving") { el.textContent = "Saving..."; }
          else if (status === "saved") { el.textContent = "Saved"; el.classList.add("saved"); }
          else { el.textContent = ""; }
        }

        function reloadPreview() {
          $("frame").src = "/preview?rev=" + (state ? state.revision : 0);
        }

        function renderDiff() {
          const before = (state.previous_document || "").split("\n");
          const after = (state.document || "").split("\n");
          const out = $("diff");
          out.textContent = "";
          const n = Math.max(before.length, after.length);
          for (let i = 0; i < n; i++) {
            if (before[i] === after[i]) {
              out.appendChild(line("  " + after[i], ""));
              continue;
            }
            if (i < before.length) { out.appendChild(line("- " + before[i], "del")); }
            if (i < after.length) { out.appendChild(line("+ " + after[i], "add")); }
          }
        }

        function line(text, cls) {
          const div = document.createElement("div");
          div.textContent = text;
          if (cls) { div.className = cls; }
          return div;
        }

        $("generate").addEventListener("click", () => call("POST", "/v1/workspace/generate", { instruction: $("instruction").value }));
        $("refine").addEventListener("click", () => call("POST", "/v1/workspace/refine", { instruction: $("instruction").value }));
        $("clear").addEventListener("click", () => {
          if (confirm("Clear the current project? This cannot be undone.")) { call("POST", "/v1/workspace/clear"); }
        });
        $("upload").addEventListener("click", () => $("file").click());
        $("file").addEventListener("change", () => {
          const file = $("file").files[0];
          if (!file) { return; }
          const form = new FormData();
          form.append("file", file);
          call("POST", "/v1/workspace/upload", form).finally(() => { $("file").value = ""; });
        });
        $("clone").addEventListener("click", () => call("POST", "/v1/workspace/clone", { repository_url: $("repo").value }));
        $("format").addEventListener("click", () => call("POST", "/v1/workspace/format"));
        $("code").addEventListener("blur", () => {
          clearTimeout(editTimer);
          call("PUT", "/v1/workspace/document", { content: $("code").value }).then(() => call("POST", "/v1/workspace/format"));
        });
        $("code").addEventListener("input", () => {
          clearTimeout(editTimer);
          editTimer = setTimeout(() => call("PUT", "/v1/workspace/document", { content: $("code").value }), 150);
        });
        $("instruction").addEventListener("input", () => {
          clearTimeout(instructionTimer);
          if (state) { render(state); }
          instructionTimer = setTimeout(() => call("PUT", "/v1/workspace/instruction", { instruction: $("instruction").value }), 300);
        });
        $("theme").addEventListener("click", () => {
          const next = state && state.theme === "dark" ? "light" : "dark";
          call("PUT", "/v1/workspace/theme", { theme: next });
        });
        $("toggle-diff").addEventListener("click", () => {
          $("editor").classList.toggle("diffing");
          if (state) { renderDiff(); }
        });
        $("zen").addEventListener("click", () => $("app").classList.add("zen"));
        document.addEventListener("keydown", (e) => {
          if (e.key === "Escape") { $("app").classList.remove("zen"); }
        });

        function connect() {
          const proto = location.protocol === "https:" ? "wss://" : "ws://";
          const ws = new WebSocket(proto + location.host + "/v1/workspace/events");
          ws.onmessage = (msg) => {
            const evt = JSON.parse(msg.data);
            if (evt.type === "preview") {
              state = evt.state;
              reloadPreview();
              return;
            }
            render(evt.state);
          };
          ws.onclose = () => setTimeout(connect, 1000);
        }

        call("GET", "/v1/workspace").then(connect);
      })();
    </script>
  </body>
</html>
`))

func renderIndexPage(data indexPageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexPageTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (rt *Router) index(w http.ResponseWriter, r *http.Request) {
	view := rt.workspace.Snapshot()
	page, err := renderIndexPage(indexPageData{
		Title:       "AI DevGen Studio",
		Theme:       view.Theme,
		OriginLabel: view.OriginLabel,
		Instruction: view.Instruction,
		Document:    view.Document,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
