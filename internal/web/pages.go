package web

import (
	"fmt"
	"net/http"
)

const faviconTag = `<link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>📺</text></svg>">`

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.isValidSession(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, loginHTML)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

const loginHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>StreamScout Login</title>
` + faviconTag + `
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #1a1a2e; color: #eee; min-height: 100vh; display: flex; align-items: center; justify-content: center; }
  .login-box { background: #16213e; border-radius: 16px; padding: 40px; width: 360px; }
  h1 { text-align: center; margin-bottom: 30px; color: #e94560; font-size: 22px; }
  .field { margin-bottom: 20px; }
  label { display: block; margin-bottom: 6px; font-size: 14px; color: #aaa; }
  input { width: 100%; padding: 12px; border: 1px solid #333; border-radius: 8px; background: #0f3460; color: #eee; font-size: 16px; outline: none; }
  input:focus { border-color: #e94560; }
  .btn { width: 100%; padding: 14px; border: none; border-radius: 8px; background: #e94560; color: #fff; font-size: 16px; font-weight: bold; cursor: pointer; }
  .btn:hover { opacity: 0.9; }
  .error { color: #e94560; text-align: center; margin-top: 15px; font-size: 14px; display: none; }
</style>
</head>
<body>
<div class="login-box">
  <h1>📺 StreamScout</h1>
  <form id="loginForm">
    <div class="field">
      <label>Username</label>
      <input type="text" name="username" id="username" autocomplete="username" required>
    </div>
    <div class="field">
      <label>Password</label>
      <input type="password" name="password" id="password" autocomplete="current-password" required>
    </div>
    <button type="submit" class="btn">Sign in</button>
    <div class="error" id="error"></div>
  </form>
</div>
<script>
document.getElementById('loginForm').onsubmit = async (e) => {
  e.preventDefault();
  const form = new FormData(e.target);
  const res = await fetch('/api/login', { method: 'POST', body: new URLSearchParams(form) });
  if (res.ok) {
    window.location.href = '/';
  } else {
    const data = await res.json();
    const el = document.getElementById('error');
    el.textContent = data.error || 'login failed';
    el.style.display = 'block';
  }
};
</script>
</body>
</html>`

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>StreamScout</title>
` + faviconTag + `
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; background: #1a1a2e; color: #eee; min-height: 100vh; padding: 20px; }
  .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 30px; }
  h1 { font-size: 24px; color: #e94560; }
  h2 { font-size: 16px; color: #aaa; margin: 25px 0 10px; }
  .logout { padding: 8px 16px; border: 1px solid #555; border-radius: 6px; background: transparent; color: #aaa; cursor: pointer; font-size: 13px; text-decoration: none; }
  .logout:hover { border-color: #e94560; color: #e94560; }
  .card { background: #16213e; border-radius: 12px; padding: 16px 20px; margin-bottom: 10px; }
  .row { display: flex; justify-content: space-between; align-items: center; gap: 12px; }
  .source { font-size: 15px; font-weight: bold; word-break: break-all; }
  .meta { font-size: 13px; color: #888; }
  .badge { padding: 3px 10px; border-radius: 12px; font-size: 12px; font-weight: bold; }
  .badge-live { background: #e94560; }
  .badge-idle { background: #444; }
  .empty { color: #666; font-size: 14px; padding: 10px 0; }
  .trigger-text { font-size: 13px; color: #ccc; margin-top: 6px; word-break: break-all; }
</style>
</head>
<body>
<div class="header">
  <h1>📺 StreamScout</h1>
  <a href="/api/logout" class="logout">Sign out</a>
</div>
<h2>Live sessions</h2>
<div id="sessions"><div class="empty">none</div></div>
<h2>Recent events</h2>
<div id="triggers"><div class="empty">none</div></div>
<script>
async function refresh() {
  const [sres, tres] = await Promise.all([fetch('/api/sessions'), fetch('/api/triggers?limit=10')]);
  if (sres.status === 401) { window.location.href = '/login'; return; }
  const sessions = await sres.json();
  const triggers = await tres.json();

  const sel = document.getElementById('sessions');
  sel.innerHTML = sessions.length ? sessions.map(s => ` + "`" + `
    <div class="card row">
      <div>
        <div class="source">${s.source_id}</div>
        <div class="meta">chunk #${s.next_chunk_index} · ${s.chunk_duration}s chunks · ${s.id}</div>
      </div>
      <span class="badge ${s.active ? 'badge-live' : 'badge-idle'}">${s.active ? 'LIVE' : 'idle'}</span>
    </div>
  ` + "`" + `).join('') : '<div class="empty">none</div>';

  const tel = document.getElementById('triggers');
  tel.innerHTML = triggers.length ? triggers.map(t => ` + "`" + `
    <div class="card">
      <div class="row">
        <span class="source">${t.event}</span>
        <span class="meta">score ${Math.round(t.score)} · ${t.ts}</span>
      </div>
      <div class="trigger-text">${t.detail || ''}</div>
    </div>
  ` + "`" + `).join('') : '<div class="empty">none</div>';
}
refresh();
setInterval(refresh, 2000);
</script>
</body>
</html>`
