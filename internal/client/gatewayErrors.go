package client

import (
	"context"
	"errors"
	"net"
	"strings"

	"membership-sync/internal/gateway"
)

func transportError(gatewayID string, err error) *gateway.Error {
	msg := err.Error()
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = "timeout"
	}
	return &gateway.Error{Kind: gateway.KindTransport, Gateway: gatewayID, Message: msg}
}

func rejectedError(gatewayID string, statusCode int, body []byte) *gateway.Error {
	return &gateway.Error{
		Kind:       gateway.KindRemoteRejected,
		Gateway:    gatewayID,
		Message:    "request rejected by processor",
		StatusCode: statusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func missingReferenceError(gatewayID, subscriptionID string) *gateway.Error {
	return &gateway.Error{
		Kind:    gateway.KindMissingReference,
		Gateway: gatewayID,
		Message: "subscription " + subscriptionID + " has no gateway subscription id",
	}
}

func unexpectedError(gatewayID, msg string) *gateway.Error {
	return &gateway.Error{Kind: gateway.KindUnexpectedResponse, Gateway: gatewayID, Message: msg}
}
