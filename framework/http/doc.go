// Package http adapts injected functions to net/http and provides the JSON
// response helpers they use.
//
// # Handlers
//
// Handler binds a function whose caller-supplied parameters are
// (context.Context, http.ResponseWriter, *http.Request) and whose other
// parameters are container.In structs. Every request is one asynchronous
// operation: resources opened for the request are released when the
// handler returns, and failures are rendered as JSON.
//
//	router.Get("/users/{id}", gohttp.MustHandler(inj, showUser))
//
// # Request IDs
//
//	router.Middleware(gohttp.AssignRequestID(container.DefaultFields()))
//	container.BindField(r, gohttp.RequestIDField)
//
// # Response
//
//	res := gohttp.NewResponse(w)
//
//	res.JSON(200, data)           // raw JSON with status
//	res.Success(data)             // 200 {"data": ...}
//	res.Created(data)             // 201 {"data": ...}
//	res.NoContent()               // 204
//	res.Error(400, "bad input")   // {"message": "bad input"}
//	res.NotFound()                // 404 {"message": "Not found."}
//	res.Fail(err)                 // status from StatusOf(err)
package http
