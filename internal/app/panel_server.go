package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket upgrader for panel connections. The daemon only listens on
// loopback, so origins are not checked.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// panelConn is one connected panel. Writes are serialized per connection;
// gorilla/websocket does not allow concurrent writers.
type panelConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *panelConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// PanelServer serves the panel UI, health and stats endpoints, and the
// panel WebSocket. Inbound messages go through the router; TAB_INFO_UPDATED
// pushes fan out to every connected panel.
type PanelServer struct {
	logger  *zap.Logger
	router  *Router
	statsFn func() any

	server *http.Server

	mu    sync.Mutex
	conns map[*panelConn]struct{}
}

// NewPanelServer creates a panel server. statsFn supplies the /stats payload.
func NewPanelServer(logger *zap.Logger, router *Router, statsFn func() any) *PanelServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PanelServer{
		logger:  logger.Named("panel"),
		router:  router,
		statsFn: statsFn,
		conns:   map[*panelConn]struct{}{},
	}
}

// Start begins listening on the given port. Serving happens on a background
// goroutine; Start returns immediately.
func (s *PanelServer) Start(port int) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(s.statsFn())
	})

	mux.HandleFunc("/panel/ws", s.handleWS)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(panelHTML))
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("panel server error", zap.Error(err))
		}
	}()

	s.logger.Info("panel server listening", zap.Int("port", port))
}

// Shutdown stops the server and closes every panel connection.
func (s *PanelServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.conns {
		c.conn.Close()
	}
	s.conns = map[*panelConn]struct{}{}
	s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Broadcast pushes a message to every connected panel. Failed writes drop
// the connection; the panel reconnects on its own.
func (s *PanelServer) Broadcast(resp Response) {
	s.mu.Lock()
	conns := make([]*panelConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.writeJSON(resp); err != nil {
			s.dropConn(c)
		}
	}
}

// ConnCount returns the number of connected panels.
func (s *PanelServer) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *PanelServer) handleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, req, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	pc := &panelConn{conn: conn}
	s.mu.Lock()
	s.conns[pc] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("panel connected", zap.String("remote", req.RemoteAddr))
	defer s.dropConn(pc)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		// Handlers may block on browser or API calls; each message gets
		// its own goroutine so a slow request never stalls the read loop.
		go func(msg Message) {
			resp := s.router.Handle(req.Context(), msg)
			if err := pc.writeJSON(resp); err != nil {
				s.dropConn(pc)
			}
		}(msg)
	}
}

func (s *PanelServer) dropConn(c *panelConn) {
	s.mu.Lock()
	_, present := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()

	if present {
		c.conn.Close()
	}
}

const panelHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>NFT Lens</title>
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --bg-tertiary: #21262d;
            --border-color: #30363d;
            --text-primary: #c9d1d9;
            --text-secondary: #8b949e;
            --accent-blue: #58a6ff;
            --accent-green: #3fb950;
            --accent-red: #f85149;
            --accent-yellow: #d29922;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, monospace;
            background: var(--bg-primary);
            color: var(--text-primary);
            padding: 20px;
            line-height: 1.5;
        }
        h1 { color: var(--accent-blue); margin-bottom: 20px; font-size: 22px; }
        .card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 8px;
            padding: 16px;
            margin-bottom: 16px;
        }
        .card h3 { color: var(--accent-blue); font-size: 15px; margin-bottom: 12px; }
        .stat-row { display: flex; justify-content: space-between; padding: 6px 0; border-bottom: 1px solid var(--bg-tertiary); }
        .stat-row:last-child { border-bottom: none; }
        .stat-label { color: var(--text-secondary); }
        .stat-value { font-weight: 600; }
        .stat-value.mono { font-family: monospace; font-size: 13px; color: var(--accent-blue); }
        .status { display: flex; align-items: center; gap: 8px; margin-bottom: 16px; }
        .status-dot { width: 10px; height: 10px; border-radius: 50%; }
        .status-dot.connected { background: var(--accent-green); }
        .status-dot.disconnected { background: var(--accent-red); animation: blink 1s infinite; }
        @keyframes blink { 50% { opacity: 0.5; } }
        .key-input { display: flex; gap: 8px; }
        .key-input input {
            flex: 1; background: var(--bg-tertiary); border: 1px solid var(--border-color);
            border-radius: 6px; padding: 8px 12px; color: var(--text-primary); font-size: 14px;
        }
        .key-input button {
            background: var(--accent-blue); border: none; border-radius: 6px;
            padding: 8px 16px; color: white; cursor: pointer; font-size: 13px;
        }
        .chart { height: 60px; display: flex; align-items: flex-end; gap: 2px; padding: 10px 0; }
        .chart-bar { background: var(--accent-blue); border-radius: 2px 2px 0 0; flex: 1; min-height: 2px; }
        .chart-bar.wash { background: var(--accent-red); }
        .empty { color: var(--text-secondary); text-align: center; padding: 20px; font-size: 13px; }
        .badge { display: inline-block; padding: 2px 8px; border-radius: 10px; font-size: 11px; }
        .badge.low { background: var(--accent-yellow); color: #000; }
    </style>
</head>
<body>
    <h1>NFT Lens</h1>
    <div class="status">
        <div id="wsDot" class="status-dot disconnected"></div>
        <span id="wsStatus">Connecting...</span>
    </div>

    <div class="card">
        <h3>Current Tab</h3>
        <div id="tabInfo"><div class="empty">No tab info yet</div></div>
    </div>

    <div class="card">
        <h3>NFT</h3>
        <div id="nftInfo"><div class="empty">Not an NFT page</div></div>
    </div>

    <div class="card">
        <h3>Collection Volume</h3>
        <div class="chart" id="metricsChart"></div>
        <div id="metricsSummary" class="empty">No metrics yet</div>
    </div>

    <div class="card">
        <h3>API Key</h3>
        <div class="key-input">
            <input type="password" id="apiKeyInput" placeholder="Analytics API key">
            <button onclick="saveKey()">Save</button>
        </div>
        <div id="keyStatus" style="margin-top: 8px; font-size: 12px; color: var(--text-secondary);"></div>
    </div>

    <script>
        let ws = null;
        let nextID = 1;
        const pending = {};

        function send(type, payload) {
            return new Promise((resolve) => {
                const id = String(nextID++);
                pending[id] = resolve;
                ws.send(JSON.stringify({ id: id, type: type, payload: payload }));
            });
        }

        function connect() {
            ws = new WebSocket('ws://' + window.location.host + '/panel/ws');
            const dot = document.getElementById('wsDot');
            const status = document.getElementById('wsStatus');

            ws.onopen = async () => {
                dot.className = 'status-dot connected';
                status.textContent = 'Connected';
                const key = await send('GET_API_KEY', null);
                document.getElementById('keyStatus').textContent =
                    key.payload && key.payload.apiKey ? 'Key configured' : 'No key set';
                refreshTab();
            };

            ws.onclose = () => {
                dot.className = 'status-dot disconnected';
                status.textContent = 'Reconnecting...';
                setTimeout(connect, 2000);
            };

            ws.onerror = () => ws.close();

            ws.onmessage = (e) => {
                const msg = JSON.parse(e.data);
                if (msg.id && pending[msg.id]) {
                    pending[msg.id](msg);
                    delete pending[msg.id];
                    return;
                }
                if (msg.type === 'TAB_INFO_UPDATED') {
                    renderTab(msg.payload);
                }
            };
        }

        async function refreshTab() {
            const resp = await send('GET_CURRENT_TAB_INFO', null);
            if (resp.error) {
                document.getElementById('tabInfo').innerHTML = '<div class="empty">' + resp.error + '</div>';
                return;
            }
            renderTab(resp.payload);
        }

        function renderTab(info) {
            if (!info) return;
            document.getElementById('tabInfo').innerHTML =
                '<div class="stat-row"><span class="stat-label">Title</span><span class="stat-value">' + (info.title || '-') + '</span></div>' +
                '<div class="stat-row"><span class="stat-label">URL</span><span class="stat-value mono">' + info.url + '</span></div>';
            renderNFT(info.nftDetails);
        }

        function renderNFT(nft) {
            const el = document.getElementById('nftInfo');
            if (!nft) {
                el.innerHTML = '<div class="empty">Not an NFT page</div>';
                return;
            }
            const lowConf = nft.source === 'url:collection-slug'
                ? ' <span class="badge low">unverified</span>' : '';
            el.innerHTML =
                '<div class="stat-row"><span class="stat-label">Blockchain</span><span class="stat-value">' + nft.blockchain + '</span></div>' +
                '<div class="stat-row"><span class="stat-label">Contract</span><span class="stat-value mono">' + nft.contractAddress + lowConf + '</span></div>' +
                '<div class="stat-row"><span class="stat-label">Token</span><span class="stat-value mono">' + nft.tokenId + '</span></div>';
            loadMetrics(nft);
        }

        async function loadMetrics(nft) {
            const resp = await send('GET_COLLECTION_METRICS', {
                blockchain: nft.blockchain,
                contractAddress: nft.contractAddress
            });
            const chart = document.getElementById('metricsChart');
            const summary = document.getElementById('metricsSummary');
            if (resp.error || !resp.payload || !resp.payload.points || resp.payload.points.length === 0) {
                chart.innerHTML = '';
                summary.textContent = resp.error || 'No metrics available';
                return;
            }
            const points = resp.payload.points;
            const max = Math.max(...points.map(p => p.volume), 1);
            chart.innerHTML = points.map(p => {
                const washy = p.volume > 0 && p.wash_volume / p.volume >= 0.3;
                return '<div class="chart-bar' + (washy ? ' wash' : '') + '" style="height: ' +
                    Math.max(2, (p.volume / max) * 60) + 'px;" title="' + p.timestamp + '"></div>';
            }).join('');
            const total = points.reduce((acc, p) => acc + p.volume, 0);
            const wash = points.reduce((acc, p) => acc + p.wash_volume, 0);
            summary.textContent = 'Volume: ' + total.toFixed(2) + ' ETH, wash share: ' +
                (total > 0 ? ((wash / total) * 100).toFixed(1) : '0.0') + '%';
        }

        async function saveKey() {
            const input = document.getElementById('apiKeyInput');
            if (!input.value.trim()) return;
            const resp = await send('SET_API_KEY', { apiKey: input.value.trim() });
            document.getElementById('keyStatus').textContent =
                resp.error ? 'Error: ' + resp.error : 'Key saved';
            input.value = '';
        }

        connect();
    </script>
</body>
</html>
`
