package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var rpcCall = callRPC

func callRPC(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	resp, err := doRPCRequest(body, requireAuth)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response (HTTP %d): %w", resp.StatusCode, err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

func doRPCRequest(body []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	token := strings.TrimSpace(rpcAuthToken)
	if requireAuth && token == "" {
		return nil, errors.New("this call requires a bearer token; pass --token or set LEND_RPC_TOKEN")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func handleRPCCallError(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func handleRPCError(stderr io.Writer, rpcErr *rpcError) int {
	if len(rpcErr.Data) > 0 {
		fmt.Fprintf(stderr, "Error %d: %s (%s)\n", rpcErr.Code, rpcErr.Message, strings.TrimSpace(string(rpcErr.Data)))
	} else {
		fmt.Fprintf(stderr, "Error %d: %s\n", rpcErr.Code, rpcErr.Message)
	}
	return 1
}

func writeRPCResult(stdout io.Writer, result json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, result, "", "  "); err != nil {
		fmt.Fprintln(stdout, string(result))
		return
	}
	fmt.Fprintln(stdout, buf.String())
}

func writeJSON(stdout io.Writer, value interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// readOnlyMethods may be called without a bearer token.
var readOnlyMethods = map[string]bool{
	"lend_getItem":         true,
	"lend_getItemsByOwner": true,
	"lend_getTransaction":  true,
	"lend_getStats":        true,
	"lend_getReputation":   true,
	"lend_borrowDigest":    true,
	"arb_getDispute":       true,
	"arb_getVote":          true,
	"arb_getPanel":         true,
	"arb_getParams":        true,
	"arb_getReputation":    true,
	"bank_getBalance":      true,
	"events_list":          true,
}

func runCall(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(stderr, "Usage: lend-cli call <method> [paramsJSON]")
		return 1
	}
	method := strings.TrimSpace(args[0])
	var params interface{}
	if len(args) == 2 {
		var raw json.RawMessage
		if err := json.Unmarshal([]byte(args[1]), &raw); err != nil {
			fmt.Fprintf(stderr, "Error: params must be valid JSON: %v\n", err)
			return 1
		}
		params = raw
	}
	result, rpcErr, err := rpcCall(method, params, !readOnlyMethods[method])
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	writeRPCResult(stdout, result)
	return 0
}
