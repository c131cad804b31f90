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

package fetch

import (
	"fmt"
	"net/http"
)

// User facing messages for failed requests.
const (
	MessageTimeout   = "The request timed out. Please check your connection and try again."
	MessageNetwork   = "Network error. Please check your connection and try again."
	MessageCancelled = "The request was cancelled."
)

var statusMessages = map[int]string{
	http.StatusBadRequest:          "Invalid request. Please check your input and try again.",
	http.StatusUnauthorized:        "Authentication required. Please log in and try again.",
	http.StatusForbidden:           "You do not have permission to perform this action.",
	http.StatusNotFound:            "The requested resource was not found.",
	http.StatusConflict:            "This action conflicts with an existing record. Please refresh and try again.",
	http.StatusUnprocessableEntity: "The submitted data is invalid. Please review and try again.",
	http.StatusTooManyRequests:     "Too many requests. Please wait a moment and try again.",
	http.StatusInternalServerError: "An internal server error occurred. Please try again later.",
	http.StatusBadGateway:          "The server is temporarily unreachable. Please try again later.",
	http.StatusServiceUnavailable:  "The service is temporarily unavailable. Please try again later.",
	http.StatusGatewayTimeout:      "The server took too long to respond. Please try again later.",
}

// MessageForStatus returns the user facing message for a failed HTTP status.
func MessageForStatus(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("An unexpected error occurred (status %d).", status)
}
