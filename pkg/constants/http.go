// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Constants for the HTTP request headers
const (
	// AuthorizationHeader is the header name for the authorization
	AuthorizationHeader string = "authorization"

	// RequestIDHeader is the header name for the request ID
	RequestIDHeader string = "X-REQUEST-ID"

	// RecallSignatureHeader carries the hex HMAC-SHA256 of a Recall webhook body.
	RecallSignatureHeader string = "x-recall-signature"

	// ContentTypeHeader is the header name for the content type
	ContentTypeHeader string = "Content-Type"
)

// ContentTypeJSON is the media type of every API response body.
const ContentTypeJSON = "application/json"

// contextRequestID is the type for the request ID context key
type contextRequestID string

// RequestIDContextID is the context ID for the request ID
const RequestIDContextID contextRequestID = "X-REQUEST-ID"

// contextAuthorization is the type for the authorization context key
type contextAuthorization string

// AuthorizationContextID is the context ID for the authorization
const AuthorizationContextID contextAuthorization = "authorization"

// contextPrincipal is the type for the principal context key
type contextPrincipal string

// PrincipalContextID is the context ID for the authenticated user id
const PrincipalContextID contextPrincipal = "principal"
