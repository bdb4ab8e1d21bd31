package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/usecases"
)

// graphQLArgs maps GraphQL argument names onto request parameter names.
var graphQLArgs = map[string]string{
	"text":     usecases.ParamText,
	"size":     usecases.ParamSize,
	"layers":   usecases.ParamLayers,
	"focusLat": usecases.ParamFocusLat,
	"focusLon": usecases.ParamFocusLon,
	"pointLat": usecases.ParamPointLat,
	"pointLon": usecases.ParamPointLon,
	"minLon":   usecases.ParamRectMinLon,
	"minLat":   usecases.ParamRectMinLat,
	"maxLon":   usecases.ParamRectMaxLon,
	"maxLat":   usecases.ParamRectMaxLat,
}

func queryParams(args map[string]interface{}) map[string]string {
	renamed := make(map[string]interface{}, len(args))
	for k, v := range args {
		if name, ok := graphQLArgs[k]; ok {
			renamed[name] = v
		}
	}
	return paramsFromMap(renamed)
}

// buildSchema creates the GraphQL schema wired to the geocoder.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	// Free-form JSON, output only.
	jsonType := graphql.NewScalar(graphql.ScalarConfig{
		Name:        "JSON",
		Description: "Arbitrary JSON value",
		Serialize: func(value interface{}) interface{} {
			return value
		},
	})

	featureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Feature",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type: jsonType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*geojson.Feature).ID, nil
				},
			},
			"type": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*geojson.Feature).Type, nil
				},
			},
			"name": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*geojson.Feature).Properties.MustString("name", ""), nil
				},
			},
			"layer": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*geojson.Feature).Properties.MustString("layer", ""), nil
				},
			},
			"geometry": &graphql.Field{
				Type: jsonType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					f := p.Source.(*geojson.Feature)
					if f.Geometry == nil {
						return nil, nil
					}
					return geojson.NewGeometry(f.Geometry), nil
				},
			},
			"properties": &graphql.Field{
				Type: jsonType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return map[string]interface{}(p.Source.(*geojson.Feature).Properties), nil
				},
			},
		},
	})

	collectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "FeatureCollection",
		Fields: graphql.Fields{
			"type": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*geojson.FeatureCollection).Type, nil
				},
			},
			"features": &graphql.Field{
				Type: graphql.NewList(featureType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*geojson.FeatureCollection).Features, nil
				},
			},
		},
	})

	rectArgs := graphql.FieldConfigArgument{
		"minLon": &graphql.ArgumentConfig{Type: graphql.Float},
		"minLat": &graphql.ArgumentConfig{Type: graphql.Float},
		"maxLon": &graphql.ArgumentConfig{Type: graphql.Float},
		"maxLat": &graphql.ArgumentConfig{Type: graphql.Float},
	}

	forwardArgs := graphql.FieldConfigArgument{
		"text":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"size":     &graphql.ArgumentConfig{Type: graphql.Int},
		"layers":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
		"focusLat": &graphql.ArgumentConfig{Type: graphql.Float},
		"focusLon": &graphql.ArgumentConfig{Type: graphql.Float},
	}
	for k, v := range rectArgs {
		forwardArgs[k] = v
	}

	resolver := func(method domain.Method) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (interface{}, error) {
			q := usecases.NormalizeQuery(queryParams(p.Args), deps.Defaults)
			return deps.Geocoder.Geocode(p.Context, method, q)
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"autocomplete": &graphql.Field{
				Type:        collectionType,
				Description: "Type-ahead suggestions, transit stops first",
				Args:        forwardArgs,
				Resolve:     resolver(domain.MethodAutocomplete),
			},
			"search": &graphql.Field{
				Type:        collectionType,
				Description: "Forward geocoding",
				Args:        forwardArgs,
				Resolve:     resolver(domain.MethodSearch),
			},
			"reverse": &graphql.Field{
				Type:        collectionType,
				Description: "Features near a point",
				Args: graphql.FieldConfigArgument{
					"pointLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"pointLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"size":     &graphql.ArgumentConfig{Type: graphql.Int},
					"layers":   &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				},
				Resolve: resolver(domain.MethodReverse),
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		if len(result.Errors) > 0 {
			LoggerFromCtx(c.UserContext()).Warn("graphql query failed", "errors", len(result.Errors), "first", result.Errors[0].Message)
		}

		return c.JSON(result)
	}
}
