package api

// dashboardHTML is the browser view. It renders /api/v1/view once and then
// applies /events. With ?embed=1 only the chart is shown, which is what the
// snapshot renderer captures; the canvas gets data-ready="true" after each
// completed draw.
const dashboardHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Coin Dashboard</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"></script>
  <script src="https://cdn.jsdelivr.net/npm/luxon@3.4.4/build/global/luxon.min.js"></script>
  <script src="https://cdn.jsdelivr.net/npm/chartjs-adapter-luxon@1.3.1/dist/chartjs-adapter-luxon.umd.min.js"></script>
  <script src="https://cdn.jsdelivr.net/npm/chartjs-chart-financial@0.2.1/dist/chartjs-chart-financial.min.js"></script>
  <style>
    *, *::before, *::after { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      background: #0d1117;
      color: #c9d1d9;
    }
    header {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 0 24px;
      height: 48px;
      display: flex;
      align-items: center;
      justify-content: space-between;
    }
    header .brand { font-weight: 600; color: #e6edf3; }
    header a { color: #58a6ff; font-size: 13px; text-decoration: none; }
    .wrap { max-width: 1100px; margin: 0 auto; padding: 24px 16px; }
    .prices { display: flex; gap: 12px; flex-wrap: wrap; margin-bottom: 20px; }
    .price {
      flex: 1;
      min-width: 160px;
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 8px;
      padding: 14px 18px;
    }
    .price .label { font-size: 12px; color: #8b949e; text-transform: uppercase; letter-spacing: .06em; }
    .price .value { font-size: 22px; font-weight: 600; color: #e6edf3; margin-top: 4px; }
    .card { background: #161b22; border: 1px solid #30363d; border-radius: 8px; }
    .card-header {
      display: flex;
      flex-wrap: wrap;
      gap: 10px;
      align-items: center;
      justify-content: space-between;
      padding: 12px 18px;
      border-bottom: 1px solid #21262d;
    }
    .card-header h5 { margin: 0; font-size: 15px; color: #e6edf3; }
    .controls { display: flex; gap: 8px; flex-wrap: wrap; }
    select, button, input {
      background: #0d1117;
      color: #c9d1d9;
      border: 1px solid #30363d;
      border-radius: 6px;
      padding: 5px 10px;
      font-size: 13px;
    }
    button { cursor: pointer; }
    button.active { background: #1f6feb; border-color: #1f6feb; color: #fff; }
    .chart-box { position: relative; height: 420px; padding: 12px 18px; }
    .alert-form { display: flex; gap: 8px; align-items: center; margin-top: 20px; }
    .alert-form .msg { font-size: 13px; color: #8b949e; }
    .alert-form .msg.error { color: #f85149; }
    .toast {
      position: fixed;
      right: 20px;
      bottom: 20px;
      max-width: 360px;
      background: #161b22;
      border: 1px solid #d29922;
      border-radius: 8px;
      padding: 12px 16px;
      display: none;
    }
    .toast strong { display: block; color: #e6edf3; margin-bottom: 4px; }
    body.embed header, body.embed .prices, body.embed .alert-form, body.embed .controls { display: none; }
    body.embed .wrap { padding: 0; }
  </style>
</head>
<body>

<header>
  <span class="brand">Coin Dashboard</span>
  <span><a href="/docs">API</a> &middot; <a href="/docs/stream">Event stream</a></span>
</header>

<div class="wrap">
  <div class="prices" id="prices"></div>

  <div class="card">
    <div class="card-header">
      <h5 id="chart-title">Price Trend</h5>
      <div class="controls">
        <select id="coinSelector"></select>
        <select id="timeSelector">
          <option value="">Default</option>
          <option value="1">1 Day</option>
          <option value="7">7 Days</option>
          <option value="30">30 Days</option>
          <option value="90">90 Days</option>
          <option value="365">1 Year</option>
        </select>
        <button data-kind="line" class="active">Line</button>
        <button data-kind="candlestick" id="candlestickChartBtn">Candlestick</button>
        <button data-kind="volume">Volume</button>
      </div>
    </div>
    <div class="chart-box"><canvas id="chart"></canvas></div>
  </div>

  <form class="alert-form" id="alertForm">
    <input id="alertPrice" type="text" inputmode="decimal" placeholder="Alert below (USD)" />
    <button type="submit">Set Alert</button>
    <span class="msg" id="alertMsg"></span>
  </form>
</div>

<div class="toast" id="priceToast"><strong></strong><span class="toast-body"></span></div>

<script>
(function () {
  const embed = new URLSearchParams(location.search).get('embed') === '1';
  if (embed) document.body.classList.add('embed');

  const canvas = document.getElementById('chart');
  let chart = null;
  let revision = 0;
  let soundURL = '';

  async function api(method, path, body) {
    const res = await fetch(path, {
      method,
      headers: body ? { 'Content-Type': 'application/json' } : {},
      body: body ? JSON.stringify(body) : undefined,
    });
    const data = await res.json().catch(() => ({}));
    if (!res.ok) throw new Error(data.detail || res.statusText);
    return data;
  }

  function num(v) {
    return typeof v === 'string' ? parseFloat(v) : v;
  }

  function renderPrices(coins) {
    const box = document.getElementById('prices');
    box.innerHTML = '';
    coins.filter((c) => c.required || c.price).forEach((c) => {
      const el = document.createElement('div');
      el.className = 'price';
      el.innerHTML = '<div class="label"></div><div class="value"></div>';
      el.querySelector('.label').textContent = c.label || c.id;
      el.querySelector('.value').textContent = c.price || '...';
      box.appendChild(el);
    });
  }

  function renderSelectors(view) {
    const sel = document.getElementById('coinSelector');
    if (!sel.options.length) {
      view.coins.forEach((c) => sel.add(new Option(c.label || c.id, c.id)));
    }
    sel.value = view.selection.coin_id;
    document.getElementById('timeSelector').value = view.selection.range || '';
    document.querySelectorAll('button[data-kind]').forEach((b) => {
      b.classList.toggle('active', b.dataset.kind === (view.selection.kind || 'line'));
    });
    document.getElementById('candlestickChartBtn').style.display = view.candlestick_enabled ? '' : 'none';
    if (view.title) document.getElementById('chart-title').textContent = view.title;
  }

  function toChartJS(cfg) {
    const ctx = canvas.getContext('2d');
    cfg.data.labels = cfg.data.labels || [];
    cfg.data.datasets.forEach((ds) => {
      if (ds.type === 'candlestick' || cfg.type === 'candlestick') {
        ds.data = ds.data.map((p) => ({ x: p.x, o: num(p.o), h: num(p.h), l: num(p.l), c: num(p.c) }));
      } else {
        ds.data = ds.data.map(num);
      }
      if (ds.gradient) {
        const g = ctx.createLinearGradient(0, 0, 0, canvas.height || 400);
        g.addColorStop(0, ds.gradient.from);
        g.addColorStop(1, ds.gradient.to);
        ds.backgroundColor = g;
        delete ds.gradient;
      }
    });
    const prefix = cfg.options.plugins.tooltip.prefix;
    cfg.options.plugins.tooltip = {
      callbacks: {
        label: (item) => {
          const lines = item.dataset.tooltips;
          if (lines && lines[item.dataIndex]) return lines[item.dataIndex];
          if (prefix && item.dataset.yAxisID !== 'y1') return prefix + item.formattedValue;
          return item.dataset.label + ': ' + item.formattedValue;
        },
      },
    };
    cfg.options.animation = embed ? false : undefined;
    return cfg;
  }

  function renderChart(view) {
    if (!view || view.revision <= revision) return;
    revision = view.revision;
    canvas.dataset.ready = 'false';
    if (chart) {
      chart.destroy();
      chart = null;
    }
    chart = new Chart(canvas.getContext('2d'), toChartJS(view.config));
    document.getElementById('chart-title').textContent = view.title;
    requestAnimationFrame(() => { canvas.dataset.ready = 'true'; });
  }

  function showNotification(n) {
    const toast = document.getElementById('priceToast');
    toast.querySelector('strong').textContent = n.title;
    toast.querySelector('.toast-body').textContent = n.message;
    toast.style.display = 'block';
    clearTimeout(toast._hide);
    toast._hide = setTimeout(() => { toast.style.display = 'none'; }, 6000);
    const src = n.sound_url || soundURL;
    if (src && !embed) new Audio(src).play().catch(() => {});
  }

  async function select(path, body) {
    try {
      const view = await api('PUT', path, body);
      renderSelectors(view);
      renderChart(view.chart);
    } catch (err) {
      console.warn('selection failed', err);
    }
  }

  document.getElementById('coinSelector').addEventListener('change', (e) => {
    select('/api/v1/selection/coin', { coin: e.target.value });
  });
  document.getElementById('timeSelector').addEventListener('change', (e) => {
    select('/api/v1/selection/range', { range: e.target.value });
  });
  document.querySelectorAll('button[data-kind]').forEach((b) => {
    b.addEventListener('click', () => select('/api/v1/selection/kind', { kind: b.dataset.kind }));
  });

  document.getElementById('alertForm').addEventListener('submit', async (e) => {
    e.preventDefault();
    const msg = document.getElementById('alertMsg');
    msg.classList.remove('error');
    try {
      const conf = await api('POST', '/api/v1/alert', { price: document.getElementById('alertPrice').value });
      msg.textContent = conf.message;
    } catch (err) {
      msg.classList.add('error');
      msg.textContent = err.message;
    }
  });

  async function boot() {
    const view = await api('GET', '/api/v1/view');
    soundURL = view.sound_url || '';
    renderPrices(view.coins);
    renderSelectors(view);
    renderChart(view.chart);

    const feeds = embed ? 'chart' : 'quotes,chart,selection,alert,notification';
    const sse = new EventSource('/events?feeds=' + feeds);
    sse.addEventListener('quotes', (e) => renderPrices(JSON.parse(e.data).coins));
    sse.addEventListener('chart', (e) => renderChart(JSON.parse(e.data)));
    sse.addEventListener('selection', (e) => {
      const ev = JSON.parse(e.data);
      document.getElementById('chart-title').textContent = ev.title;
    });
    sse.addEventListener('alert', (e) => {
      document.getElementById('alertMsg').textContent = JSON.parse(e.data).message;
    });
    sse.addEventListener('notification', (e) => showNotification(JSON.parse(e.data)));
  }

  boot().catch((err) => console.error('dashboard boot failed', err));
})();
</script>
</body>
</html>`
