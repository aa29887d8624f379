package http

import (
	"errors"
	"path"

	"github.com/freekieb7/staticd/filesystem"
)

// FileHandler answers GET requests with files below the document root of fsys.
func FileHandler(fsys filesystem.Filesystem) Handler {
	return func(ctx *RequestCtx) {
		if ctx.Request.Method != MethodGet {
			ctx.Response.WithError(StatusNotImplemented)
			return
		}

		name, err := fsys.Resolve(ctx.Request.Target)
		if err != nil {
			ctx.Logger.Warn("rejected target", "target", ctx.Request.Target, "error", err)
			ctx.Response.WithError(StatusNotFound)
			return
		}
		ctx.Logger.Info("file requested", "file", name)

		data, err := fsys.ReadFile(name)
		switch {
		case err == nil:
			ctx.Response.WithFile(path.Base(name), data)
		case errors.Is(err, filesystem.ErrFileNotFound),
			errors.Is(err, filesystem.ErrIsDirectory),
			errors.Is(err, filesystem.ErrNotRegularFile),
			errors.Is(err, filesystem.ErrOutsideRoot):
			ctx.Logger.Info("file not found", "file", name, "error", err)
			ctx.Response.WithError(StatusNotFound)
		case errors.Is(err, filesystem.ErrPermission):
			ctx.Logger.Warn("file not readable", "file", name, "error", err)
			ctx.Response.WithError(StatusForbidden)
		default:
			ctx.Logger.Error("reading file failed", "file", name, "error", err)
			ctx.Response.WithError(StatusInternalServerError)
		}
	}
}

var NotFoundHandler Handler = func(ctx *RequestCtx) {
	ctx.Response.WithError(StatusNotFound)
}
