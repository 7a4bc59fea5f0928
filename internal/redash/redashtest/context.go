package redashtest

import "context"

type bodyKey struct{}

func withBody(ctx context.Context, body Record) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func bodyOf(ctx context.Context) Record {
	body, _ := ctx.Value(bodyKey{}).(Record)
	if body == nil {
		return Record{}
	}
	return body
}
