package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "events",
			"type": "base",
			"system": false,
			"indexes": [
				"CREATE INDEX idx_events_state_start ON events (state, start_date)",
				"CREATE INDEX idx_events_state_end ON events (state, end_date)",
				"CREATE UNIQUE INDEX idx_events_external_id ON events (external_id) WHERE external_id != ''"
			],
			"fields": [
				{
					"autogeneratePattern": "[a-z0-9]{15}",
					"hidden": false,
					"max": 15,
					"min": 15,
					"name": "id",
					"pattern": "^[a-z0-9]+$",
					"presentable": false,
					"primaryKey": true,
					"required": true,
					"system": true,
					"type": "text"
				},
				{
					"name": "name",
					"type": "text",
					"required": true
				},
				{
					"name": "description",
					"type": "text"
				},
				{
					"name": "location",
					"type": "text"
				},
				{
					"name": "organizer",
					"type": "text"
				},
				{
					"name": "link",
					"type": "url"
				},
				{
					"name": "start_date",
					"type": "date"
				},
				{
					"name": "end_date",
					"type": "date"
				},
				{
					"name": "state",
					"type": "select",
					"maxSelect": 1,
					"values": ["draft", "published", "live", "completed", "archived"]
				},
				{
					"name": "published",
					"type": "bool"
				},
				{
					"name": "created_by",
					"type": "relation",
					"collectionId": "_pb_users_auth_",
					"cascadeDelete": false,
					"maxSelect": 1,
					"minSelect": 0
				},
				{
					"name": "state_updated_at",
					"type": "date"
				},
				{
					"name": "state_history",
					"type": "json",
					"maxSize": 2000000
				},
				{
					"name": "external_id",
					"type": "text"
				},
				{
					"name": "source",
					"type": "text"
				},
				{
					"name": "is_user_modified",
					"type": "bool"
				},
				{
					"name": "synced_at",
					"type": "date"
				},
				{
					"name": "created",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": false
				},
				{
					"name": "updated",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true
				}
			]
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
