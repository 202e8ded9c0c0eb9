package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

type gqlCtxKey string

const gqlIdentityKey gqlCtxKey = "identity"

func gqlIdentity(ctx context.Context) string {
	id, _ := ctx.Value(gqlIdentityKey).(string)
	return id
}

// buildSchema creates the GraphQL schema wired to the location service.
// Results reuse the REST DTOs, so privacy generalization and distance bands
// apply identically.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	locationOptionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "LocationOption",
		Fields: graphql.Fields{
			"latitude":    &graphql.Field{Type: graphql.Float},
			"longitude":   &graphql.Field{Type: graphql.Float},
			"displayName": &graphql.Field{Type: graphql.String},
			"source":      &graphql.Field{Type: graphql.String},
		},
	})

	nearbyToolType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearbyTool",
		Fields: graphql.Fields{
			"toolId":           &graphql.Field{Type: graphql.String},
			"name":             &graphql.Field{Type: graphql.String},
			"ownerDisplayName": &graphql.Field{Type: graphql.String},
			"distanceBand": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if t, ok := p.Source.(map[string]interface{}); ok {
						return t["distanceBand"], nil
					}
					return nil, nil
				},
			},
			"approximateLocation": &graphql.Field{Type: locationOptionType},
		},
	})

	nearbyBundleType := graphql.NewObject(graphql.ObjectConfig{
		Name: "NearbyBundle",
		Fields: graphql.Fields{
			"bundleId":         &graphql.Field{Type: graphql.String},
			"name":             &graphql.Field{Type: graphql.String},
			"ownerDisplayName": &graphql.Field{Type: graphql.String},
			"distanceBand": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if b, ok := p.Source.(map[string]interface{}); ok {
						return b["distanceBand"], nil
					}
					return nil, nil
				},
			},
			"approximateLocation": &graphql.Field{Type: locationOptionType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"searchLocations": &graphql.Field{
				Type:        graphql.NewList(locationOptionType),
				Description: "Forward-geocode a free-text place query",
				Args: graphql.FieldConfigArgument{
					"query":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"maxResults":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 5},
					"countryCode": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := p.Args["query"].(string)
					maxResults := p.Args["maxResults"].(int)
					cc := p.Args["countryCode"].(string)
					return deps.Locations.SearchLocations(p.Context, gqlIdentity(p.Context), q, maxResults, cc)
				},
			},
			"popularLocations": &graphql.Field{
				Type:        graphql.NewList(locationOptionType),
				Description: "Most frequently searched places",
				Args: graphql.FieldConfigArgument{
					"maxResults": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Locations.PopularLocations(p.Context, p.Args["maxResults"].(int))
				},
			},
			"nearbyTools": &graphql.Field{
				Type:        graphql.NewList(nearbyToolType),
				Description: "Tools within a radius; locations are generalized",
				Args: graphql.FieldConfigArgument{
					"lat":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radiusKm":   &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 10.0},
					"maxResults": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					tools, err := deps.Locations.FindNearbyTools(p.Context, gqlIdentity(p.Context),
						p.Args["lat"].(float64), p.Args["lng"].(float64),
						p.Args["radiusKm"].(float64), p.Args["maxResults"].(int))
					if err != nil {
						return nil, err
					}
					// Pre-render the band label: graphql-go resolves struct
					// fields by name and would expose the raw enum int.
					result := make([]map[string]interface{}, len(tools))
					for i, t := range tools {
						result[i] = map[string]interface{}{
							"toolId":              t.ToolID,
							"name":                t.Name,
							"ownerDisplayName":    t.OwnerDisplayName,
							"distanceBand":        t.DistanceBand.String(),
							"approximateLocation": t.ApproximateLocation,
						}
					}
					return result, nil
				},
			},
			"nearbyBundles": &graphql.Field{
				Type:        graphql.NewList(nearbyBundleType),
				Description: "Bundles within a radius; locations are generalized",
				Args: graphql.FieldConfigArgument{
					"lat":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radiusKm":   &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 10.0},
					"maxResults": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					bundles, err := deps.Locations.FindNearbyBundles(p.Context, gqlIdentity(p.Context),
						p.Args["lat"].(float64), p.Args["lng"].(float64),
						p.Args["radiusKm"].(float64), p.Args["maxResults"].(int))
					if err != nil {
						return nil, err
					}
					result := make([]map[string]interface{}, len(bundles))
					for i, b := range bundles {
						result[i] = map[string]interface{}{
							"bundleId":            b.BundleID,
							"name":                b.Name,
							"ownerDisplayName":    b.OwnerDisplayName,
							"distanceBand":        b.DistanceBand.String(),
							"approximateLocation": b.ApproximateLocation,
						}
					}
					return result, nil
				},
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
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		ctx := context.WithValue(c.UserContext(), gqlIdentityKey, identityFrom(c))

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        ctx,
		})

		return c.JSON(result)
	}
}
