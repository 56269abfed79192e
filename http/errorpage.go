package http

import (
	"fmt"
	"io"
	"net/http"
)

const errorPageHTML = `<!DOCTYPE html>
<html lang="en">
    <head>
        <meta charset="UTF-8"/>
        <title>%[1]d %[2]s</title>
    </head>
    <body>
        <h1>%[1]d %[2]s</h1>
        <p>%[3]s</p>
    </body>
</html>
`

var errorMessages = map[int]string{
	http.StatusBadRequest:            "The request body could not be understood.",
	http.StatusForbidden:             "You are not allowed to access this location.",
	http.StatusNotFound:              "The person or page you are looking for does not exist.",
	http.StatusMethodNotAllowed:      "This location does not accept that kind of request.",
	http.StatusRequestEntityTooLarge: "The request body is too large.",
	http.StatusInternalServerError:   "The page you requested exists, but could not be served to you due to some error.",
}

func writeErrorPage(w http.ResponseWriter, code int) {
	msg, ok := errorMessages[code]
	if !ok {
		msg = http.StatusText(code)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, fmt.Sprintf(errorPageHTML, code, http.StatusText(code), msg))
}
