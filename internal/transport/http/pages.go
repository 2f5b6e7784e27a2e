package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

var importPageHTML = `<!DOCTYPE html>
<html lang="zh-Hant">
<head>
<meta charset="UTF-8" />
<meta name="viewport" content="width=device-width, initial-scale=1.0" />
<title>法規批次匯入</title>
<style>
body { font-family: Arial, "Noto Sans TC", sans-serif; margin: 0; background: #f4f6f9; color: #222; }
main { max-width: 860px; margin: 40px auto; background: #fff; padding: 28px; border-radius: 8px; box-shadow: 0 6px 24px rgba(0,0,0,0.08); }
h1 { margin-top: 0; font-size: 22px; }
label { display: block; margin: 14px 0 6px; font-weight: bold; }
input, select { width: 100%; padding: 8px; border: 1px solid #ccc; border-radius: 4px; box-sizing: border-box; }
button { margin-top: 18px; padding: 10px 22px; font-size: 15px; border: none; border-radius: 4px; cursor: pointer; background: #2f6fde; color: #fff; }
button:disabled { background: #9bb4e4; cursor: default; }
.status { margin-top: 18px; font-size: 14px; }
progress { width: 100%; height: 16px; }
pre { background: #111; color: #cde; padding: 12px; border-radius: 4px; max-height: 320px; overflow: auto; font-size: 13px; white-space: pre-wrap; }
small a { color: #2f6fde; }
</style>
</head>
<body>
<main>
  <h1>法規批次匯入</h1>
  <p>選擇包含 manifest.csv 與 PDF 的資料夾。<small><a href="/api/bulk-imports/template">下載範本</a></small></p>
  <label for="token">管理者權杖</label>
  <input id="token" type="password" placeholder="Bearer token" />
  <label for="kb">知識庫</label>
  <select id="kb"><option value="">(預設)</option></select>
  <label for="dir">資料夾</label>
  <input id="dir" type="file" webkitdirectory directory multiple />
  <button id="start" disabled>開始匯入</button>
  <div class="status">狀態：<span id="state">idle</span> <span id="count"></span></div>
  <progress id="bar" value="0" max="1"></progress>
  <pre id="log"></pre>
</main>
<script>
const $ = (id) => document.getElementById(id);
const tokenKey = 'regdocs_admin_token';
$('token').value = localStorage.getItem(tokenKey) || '';

function setState(s) { $('state').textContent = s; }
function log(line) { $('log').textContent += line + '\n'; }

fetch('/api/knowledge-bases').then(r => r.ok ? r.json() : []).then(items => {
  for (const kb of items || []) {
    const opt = document.createElement('option');
    opt.value = kb.name;
    opt.textContent = kb.name;
    $('kb').appendChild(opt);
  }
}).catch(() => {});

$('dir').addEventListener('change', () => {
  const n = $('dir').files.length;
  $('start').disabled = n === 0;
  setState(n === 0 ? 'idle' : 'ready');
  $('count').textContent = n ? '(' + n + ' files)' : '';
});

$('start').addEventListener('click', async () => {
  const token = $('token').value.trim();
  localStorage.setItem(tokenKey, token);
  const form = new FormData();
  for (const f of $('dir').files) {
    form.append('files', f, f.name);
    form.append('paths', f.webkitRelativePath || f.name);
  }
  form.append('kb', $('kb').value);

  $('start').disabled = true;
  $('log').textContent = '';
  setState('uploading');
  try {
    const res = await fetch('/api/bulk-imports', {
      method: 'POST',
      headers: token ? { 'Authorization': 'Bearer ' + token } : {},
      body: form
    });
    const data = await res.json();
    const run = data.import;
    if (run) {
      (run.log || []).forEach(log);
      $('bar').max = Math.max(run.progress.total, 1);
      $('bar').value = run.progress.done;
      setState(run.status);
    } else {
      setState('error');
    }
    if (!res.ok) log(data.error || ('HTTP ' + res.status));
  } catch (err) {
    setState('error');
    log(String(err));
  } finally {
    $('start').disabled = false;
  }
});
</script>
</body>
</html>`

// RegisterPages serves the browser import page. "/" redirects to homeURL when
// set, otherwise to the import page.
func RegisterPages(e *echo.Echo, homeURL string) {
	e.GET("/import", func(c echo.Context) error {
		return c.HTML(http.StatusOK, importPageHTML)
	})

	e.GET("/", func(c echo.Context) error {
		if homeURL != "" {
			return c.Redirect(http.StatusTemporaryRedirect, homeURL)
		}
		return c.Redirect(http.StatusTemporaryRedirect, "/import")
	})
}
