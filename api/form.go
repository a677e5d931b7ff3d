package api

import "net/http"

func (s *Server) handleFormPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(formPageHTML))
}

const formPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Generate a QR Code</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
    background: #fafafa;
    color: #111;
    display: flex;
    justify-content: center;
    padding: 40px 16px;
  }
  .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 48px; max-width: 1100px; width: 100%; }
  @media (max-width: 800px) { .grid { grid-template-columns: 1fr; } }
  h1 { font-size: 28px; margin-bottom: 24px; }
  label { display: block; font-size: 14px; font-weight: 600; margin-bottom: 6px; }
  input, select, button { font: inherit; padding: 8px 10px; border: 1px solid #ccc; border-radius: 6px; width: 100%; }
  button { background: #fff; cursor: pointer; margin-top: 8px; }
  button.primary { background: #111; color: #fff; border-color: #111; }
  button:disabled { opacity: 0.5; cursor: default; }
  .hint { color: #666; font-size: 13px; margin: 6px 0 16px; }
  .card { background: #fff; border: 1px solid #e5e5e5; border-radius: 10px; padding: 20px; margin: 16px 0; }
  .settings { display: grid; grid-template-columns: 1fr 1fr; gap: 16px; }
  #items button { text-align: left; }
  #previews figure { border: 1px solid #e5e5e5; border-radius: 6px; margin: 6px 0; padding: 8px; text-align: center; background: #fff; }
  #previews img { max-width: 100%; }
  #previews figcaption { font-size: 13px; color: #666; }
  .error { color: #b91c1c; font-size: 13px; }
  #download { display: none; margin-top: 8px; }
</style>
</head>
<body>
<div class="grid">
  <div>
    <h1>Generate a QR Code</h1>
    <label for="text">Text or URL</label>
    <input id="text" placeholder="google.com" value="google.com">
    <button id="add">+ Add links</button>
    <p class="hint">This is what your QR code will represent.</p>

    <label>Added texts and links</label>
    <p class="hint">Click to remove item.</p>
    <div id="items"></div>

    <div class="card">
      <label>QR Code Settings (optional)</label>
      <div class="settings">
        <div>
          <label for="level">Error Correction Level</label>
          <select id="level">
            <option value="low">Low</option>
            <option value="medium" selected>Medium</option>
            <option value="quartile">Quartile</option>
            <option value="high">High</option>
          </select>
        </div>
        <div>
          <label for="mask">Mask Pattern</label>
          <select id="mask">
            <option value="auto" selected>Auto</option>
            <option>0</option><option>1</option><option>2</option><option>3</option>
            <option>4</option><option>5</option><option>6</option><option>7</option>
          </select>
        </div>
        <div><label for="dark">Dark Color</label><input id="dark" type="color" value="#000000"></div>
        <div><label for="light">Light Color</label><input id="light" type="color" value="#ffffff"></div>
        <div><label for="margin">Margin (modules)</label><input id="margin" type="number" min="0" value="1"></div>
        <div><label for="width">Width (px)</label><input id="width" type="number" min="1" placeholder="500"></div>
      </div>
    </div>

    <button id="generate" class="primary" disabled>Generate</button>
    <a id="download" download="qrcodes.zip"><button>Download All QR Codes as ZIP</button></a>
    <p id="message" class="error"></p>
  </div>
  <div>
    <h1>Your QR Code</h1>
    <div id="previews"></div>
  </div>
</div>
<script>
(function() {
  var items = [];
  var textEl = document.getElementById('text');
  var itemsEl = document.getElementById('items');
  var generateEl = document.getElementById('generate');
  var previewsEl = document.getElementById('previews');
  var downloadEl = document.getElementById('download');
  var messageEl = document.getElementById('message');
  var nextID = 0;

  function clearChildren(el) {
    while (el.firstChild) el.removeChild(el.firstChild);
  }

  function renderItems() {
    clearChildren(itemsEl);
    items.forEach(function(item) {
      var b = document.createElement('button');
      b.textContent = '✕ ' + item.value;
      b.onclick = function() {
        items = items.filter(function(i) { return i.id !== item.id; });
        renderItems();
      };
      itemsEl.appendChild(b);
    });
    generateEl.disabled = items.length === 0;
  }

  function options() {
    var width = parseInt(document.getElementById('width').value, 10);
    return {
      errorCorrectionLevel: document.getElementById('level').value,
      maskPattern: document.getElementById('mask').value,
      margin: parseInt(document.getElementById('margin').value, 10) || 0,
      width: width > 0 ? width : 500,
      color: {
        dark: document.getElementById('dark').value,
        light: document.getElementById('light').value
      },
      type: 'svg'
    };
  }

  function preview(text, opts, index) {
    var fig = document.createElement('figure');
    var cap = document.createElement('figcaption');
    cap.textContent = (index + 1) + '. ' + text;
    previewsEl.appendChild(fig);
    return fetch('/encode', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify({ text: text, opts: opts })
    }).then(function(r) {
      if (!r.ok) return r.json().then(function(e) { throw new Error(e.error); });
      return r.blob();
    }).then(function(blob) {
      var img = document.createElement('img');
      img.setAttribute('alt', 'QR code ' + (index + 1));
      img.src = URL.createObjectURL(blob);
      fig.appendChild(img);
      fig.appendChild(cap);
    }).catch(function(err) {
      var p = document.createElement('p');
      p.className = 'error';
      p.textContent = err.message;
      fig.appendChild(p);
      fig.appendChild(cap);
    });
  }

  document.getElementById('add').onclick = function() {
    if (!textEl.value) return;
    items.push({ id: nextID++, value: textEl.value });
    renderItems();
  };

  generateEl.onclick = function() {
    var opts = options();
    var strings = items.map(function(i) { return i.value; });
    clearChildren(previewsEl);
    messageEl.textContent = '';
    downloadEl.style.display = 'none';
    strings.reduce(function(p, text, i) {
      return p.then(function() { return preview(text, opts, i); });
    }, Promise.resolve());

    fetch('/generate', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify({ stringsArray: strings, opts: opts })
    }).then(function(r) {
      return r.json().then(function(data) {
        if (!r.ok) throw new Error(data.error || 'Failed to generate QR codes');
        return data;
      });
    }).then(function(data) {
      if (data.failed > 0) {
        messageEl.textContent = data.failed + ' of ' + data.total + ' items could not be encoded.';
      }
      if (data.downloadUrl) {
        downloadEl.href = data.downloadUrl;
        downloadEl.style.display = 'block';
      }
    }).catch(function(err) {
      messageEl.textContent = err.message;
    });
  };

  renderItems();
})();
</script>
</body>
</html>`
