package httpapi

import "html/template"

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; color: #fff; margin: 0; padding: 24px; }
#tile { display: none; align-items: center; justify-content: center; width: 96px; height: 96px; font-size: 48px; font-weight: bold; }
body.tile-mode #tile { display: flex; }
pre { white-space: pre-wrap; }
</style>
</head>
<body class="{{if .Tile.Visible}}tile-mode{{end}}" style="background: {{.Background}}">
<h1 id="title">{{.Title}}</h1>
<p id="mode">{{.ModeText}}</p>
<div id="tile" style="background: {{.Tile.Background}}"><span id="tile-letter">{{.Tile.Letter}}</span></div>
<pre id="out">{{.Body}}</pre>
</body>
</html>
`))
