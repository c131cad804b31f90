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

// Package utils provides utility functions for HTTP operations.
package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/asgardeo/stayfront/internal/system/constants"
	"github.com/asgardeo/stayfront/internal/system/error/serviceerror"
	"github.com/asgardeo/stayfront/internal/system/log"
)

// WriteJSON writes the given value as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set(constants.ContentTypeHeaderName, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.GetLogger().Error("Failed to write JSON response", zap.Error(err))
	}
}

// WriteServiceError writes a service error as a JSON response with the given status code.
func WriteServiceError(w http.ResponseWriter, svcErr serviceerror.ServiceError, statusCode int,
	respHeaders map[string]string) {
	logger := log.GetLogger()
	logger.Debug("Error in HTTP response", zap.String("code", svcErr.Code),
		zap.String("description", svcErr.ErrorDescription))

	for key, value := range respHeaders {
		w.Header().Set(key, value)
	}
	WriteJSON(w, statusCode, svcErr)
}
