package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	jsonapifu "github.com/ccbrown/jsonapi-fu"
	"github.com/ccbrown/jsonapi-fu/types"
)

// jsonapi-lint structurally checks a JSON:API request document: the data member's shape, resource
// identifier shapes, relationship linkages, and member names. It doesn't know about any schema,
// so unknown attributes and relationships are not its business.

var (
	inputPath  = pflag.StringP("input", "i", "-", "document to check, or - for stdin")
	collection = pflag.Bool("collection", false, "expect a resource identifier array rather than a resource object")
)

func main() {
	pflag.Parse()

	buf, err := readInput(*inputPath)
	if err != nil {
		logrus.Fatal(err)
	}

	payloads := lint(buf, *collection)
	if len(payloads) == 0 {
		fmt.Println("ok")
		return
	}

	out, err := jsoniter.MarshalIndent(types.ErrorsDocument{
		Errors:  payloads,
		JSONAPI: &types.JSONAPI{Version: "1.1"},
	}, "", "  ")
	if err != nil {
		logrus.Fatal(err)
	}
	fmt.Println(string(out))
	os.Exit(1)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func lint(buf []byte, collection bool) []types.Error {
	if !jsoniter.Valid(buf) {
		return []types.Error{payload("input is not valid JSON", "")}
	}

	var doc struct {
		Data json.RawMessage `json:"data"`
	}
	if err := jsoniter.Unmarshal(buf, &doc); err != nil {
		return []types.Error{payload("document has no JSON:API top level", "")}
	}
	if len(doc.Data) == 0 {
		return []types.Error{payload("Expected document to contain a data member", "/data")}
	}

	if collection {
		var identifiers []types.ResourceId
		if string(doc.Data) == "null" {
			return []types.Error{payload("Expected data to be an array of resource identifiers", "/data")}
		}
		if err := jsoniter.Unmarshal(doc.Data, &identifiers); err != nil {
			return []types.Error{payload("Expected data to be an array of resource identifiers", "/data")}
		}
		var ret []types.Error
		for i, identifier := range identifiers {
			ret = append(ret, lintIdentifier(identifier, fmt.Sprintf("/data/%d", i))...)
		}
		return ret
	}

	if string(doc.Data) == "null" {
		return nil
	}
	var resource types.ResourceObject
	if err := jsoniter.Unmarshal(doc.Data, &resource); err != nil {
		return []types.Error{payload("Expected data to be a resource object or null", "/data")}
	}
	return lintResource(resource)
}

func lintResource(resource types.ResourceObject) []types.Error {
	var ret []types.Error
	if resource.Type == "" {
		ret = append(ret, payload("Expected resource object to have a type", "/data/type"))
	} else if err := jsonapifu.ValidateMemberName(resource.Type); err != nil {
		ret = append(ret, payload(err.Error(), "/data/type"))
	}
	for name := range resource.Attributes {
		if err := jsonapifu.ValidateMemberName(name); err != nil {
			ret = append(ret, payload(err.Error(), "/data/attributes/"+name))
		}
	}
	for name, relationship := range resource.Relationships {
		pointer := "/data/relationships/" + name
		if err := jsonapifu.ValidateMemberName(name); err != nil {
			ret = append(ret, payload(err.Error(), pointer))
		}
		switch data := relationship.Data.(type) {
		case nil:
		case types.ResourceId:
			ret = append(ret, lintIdentifier(data, pointer+"/data")...)
		case []types.ResourceId:
			for i, identifier := range data {
				ret = append(ret, lintIdentifier(identifier, fmt.Sprintf("%s/data/%d", pointer, i))...)
			}
		}
	}
	return ret
}

func lintIdentifier(identifier types.ResourceId, pointer string) []types.Error {
	var ret []types.Error
	if identifier.Type == "" {
		ret = append(ret, payload("Expected resource identifier to have a type", pointer+"/type"))
	} else if err := jsonapifu.ValidateMemberName(identifier.Type); err != nil {
		ret = append(ret, payload(err.Error(), pointer+"/type"))
	}
	if identifier.Id == "" {
		ret = append(ret, payload("Expected resource identifier to have an id", pointer+"/id"))
	}
	return ret
}

func payload(detail, pointer string) types.Error {
	ret := types.Error{
		Status: "400",
		Code:   "invalid_document",
		Title:  "Request json_api document is invalid",
		Detail: detail,
	}
	if pointer != "" {
		ret.Source = &types.ErrorSource{Pointer: pointer}
	}
	return ret
}
