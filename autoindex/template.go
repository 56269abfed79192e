package autoindex

import "html/template"

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
    <head>
        <meta charset="UTF-8"/>
        <meta name="viewport" content="width=device-width, initial-scale=1"/>
        <title>{{.Title}}</title>
{{- if .Stylesheet}}
        <link rel="stylesheet" href="{{.Stylesheet}}"/>
{{- end}}
    </head>
    <body>
{{- if .Header}}
{{.Header}}
{{- else}}
        <h1>{{.Title}}</h1>
{{- end}}
{{- if .Parent}}
        <p class="parent"><a href="{{.Parent}}">../</a></p>
{{- end}}
        <ol class="entries" start="{{.Start}}">
{{- range .Entries}}
            <li class="{{if .IsDir}}dir{{else}}file{{end}}"><a href="{{.Href}}" data-modified="{{.Modified}}" data-size="{{.Size}}">{{.Name}}{{if .IsDir}}/{{end}}</a> <span class="size">{{.HumanSize}}</span></li>
{{- end}}
        </ol>
{{- with .Pagination}}
        <nav class="pagination">
{{- if .Prev}}
            <a class="prev" href="{{.Prev}}">Prev. Page</a>
{{- end}}
            <form method="get">
                <span class="page-number" data-num-pages="{{.Pages}}">
                    <label for="page-number-input">Page #</label>
                    <input id="page-number-input" type="number" name="p" value="{{.Number}}" min="1" max="{{.Pages}}" size="4"/>
                </span>
                <span class="page-size">
                    <label for="page-size-input">Page Size</label>
                    <input id="page-size-input" type="number" name="n" value="{{.Size}}" min="1" size="4"/>
                    <input type="submit" value="Go"/>
                </span>
            </form>
{{- if .Next}}
            <a class="next" href="{{.Next}}">Next Page</a>
{{- end}}
        </nav>
{{- end}}
{{- if .Footer}}
{{.Footer}}
{{- end}}
    </body>
</html>
`))

type view struct {
	Title      string
	Stylesheet string
	Header     template.HTML
	Footer     template.HTML
	Parent     string
	Start      int
	Entries    []entryView
	Pagination *paginationView
}

type entryView struct {
	Name      string
	Href      string
	IsDir     bool
	Modified  string
	Size      int64
	HumanSize string
}

type paginationView struct {
	Number int
	Size   int
	Pages  int
	Prev   string
	Next   string
}
