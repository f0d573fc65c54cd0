package api

import (
	"html/template"
	"net/http"
	"strings"
)

// ResultPagePath is where providers send the buyer back after checkout.
const ResultPagePath = "/payment/result"

// ResultPage renders the landing page for ?status=success|cancel&order_id=...
// The page never settles anything; it polls the order status endpoint until
// the webhook has moved the order out of pending.
func ResultPage(statusEndpoint string) http.HandlerFunc {
	if statusEndpoint == "" {
		statusEndpoint = "/api/payment/orders/"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		orderID := strings.TrimSpace(q.Get("order_id"))
		status := q.Get("status")

		switch {
		case orderID == "":
			renderHTML(w, http.StatusBadRequest, resultView{Msg: "missing order reference"})
		case status == "cancel":
			renderHTML(w, http.StatusOK, resultView{OrderID: orderID, Msg: "checkout was cancelled. you have not been charged."})
		default:
			renderHTML(w, http.StatusOK, resultView{
				OK:       true,
				Poll:     true,
				OrderID:  orderID,
				Endpoint: statusEndpoint + orderID,
				Msg:      "payment received. your credits appear as soon as the provider confirms it.",
			})
		}
	}
}

type resultView struct {
	OK       bool
	Poll     bool
	OrderID  string
	Endpoint string
	Msg      string
}

var page = template.Must(template.New("result").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Payment {{if .OK}}Success{{else}}Result{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{if .OK}}Payment Successful{{else}}Payment Not Completed{{end}}</h2>
  <p id="msg">{{.Msg}}</p>
  {{if .OrderID}}<div class="small">Order {{.OrderID}}</div>{{end}}
</div>
{{if .Poll}}
<script>
(function(){
  var endpoint = {{.Endpoint}};
  var tries = 0;
  function poll(){
    tries++;
    fetch(endpoint, {credentials: "same-origin"}).then(function(r){ return r.json(); }).then(function(o){
      if (o && o.status && o.status !== "pending") {
        document.getElementById("msg").textContent = "order " + o.status + ".";
        return;
      }
      if (tries < 20) setTimeout(poll, 3000);
    }).catch(function(){ if (tries < 20) setTimeout(poll, 3000); });
  }
  poll();
})();
</script>
{{end}}
</body>
</html>`))

func renderHTML(w http.ResponseWriter, code int, v resultView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, v)
}
