/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package serviceerror defines the error structures for the service layer.
package serviceerror

// ServiceErrorType defines the type of service error.
type ServiceErrorType string

const (
	// ClientErrorType denotes the client error type.
	ClientErrorType ServiceErrorType = "client_error"
	// ServerErrorType denotes the server error type.
	ServerErrorType ServiceErrorType = "server_error"
)

// ServiceError defines a generic error structure that can be used across the service layer.
type ServiceError struct {
	Code             string           `json:"code"`
	Type             ServiceErrorType `json:"type"`
	Error            string           `json:"error"`
	ErrorDescription string           `json:"error_description,omitempty"`
}

// ErrorRateLimited is returned when the edge refuses to forward a request to protect the backend.
var ErrorRateLimited = ServiceError{
	Code:             "SFE-1001",
	Type:             ClientErrorType,
	Error:            "Too many requests",
	ErrorDescription: "Too many requests. Please wait a moment and try again.",
}

// ErrorInvalidRequest is returned when an admin request is malformed.
var ErrorInvalidRequest = ServiceError{
	Code:             "SFE-1002",
	Type:             ClientErrorType,
	Error:            "Invalid request",
	ErrorDescription: "The request is missing a required parameter or is malformed.",
}

// ErrorUpstreamFailure is returned when the backend could not serve a request after retries.
var ErrorUpstreamFailure = ServiceError{
	Code:             "SFE-5001",
	Type:             ServerErrorType,
	Error:            "Upstream failure",
	ErrorDescription: "The booking service could not complete the request.",
}

// ErrorUpstreamRejected is returned when the backend rejected a forwarded request.
var ErrorUpstreamRejected = ServiceError{
	Code:             "SFE-1003",
	Type:             ClientErrorType,
	Error:            "Request rejected",
	ErrorDescription: "The booking service rejected the request.",
}

// ErrorUpstreamTimeout is returned when the backend did not answer in time after retries.
var ErrorUpstreamTimeout = ServiceError{
	Code:             "SFE-5002",
	Type:             ServerErrorType,
	Error:            "Upstream timeout",
	ErrorDescription: "The booking service took too long to respond.",
}

// ErrorInternalServerError is returned when the edge fails unexpectedly.
var ErrorInternalServerError = ServiceError{
	Code:             "SFE-5000",
	Type:             ServerErrorType,
	Error:            "Internal server error",
	ErrorDescription: "An unexpected error occurred while processing the request.",
}
