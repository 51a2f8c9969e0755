package schema

// BaseSchema builds the canonical starting schema for consent forms. New
// form definitions start from this shape and drop the staff or witness
// sections when those signatures are not collected.
func BaseSchema() *Schema {
	dataSchema := map[string]any{
		"type":  "object",
		"title": "",
		"properties": map[string]any{
			LocationSection: map[string]any{
				"type":  "object",
				"title": "",
				"properties": map[string]any{
					LocationLatitudeKey:  map[string]any{"type": "number"},
					LocationLongitudeKey: map[string]any{"type": "number"},
				},
				"required": []any{LocationLatitudeKey, LocationLongitudeKey},
			},
			FormSection: map[string]any{
				"type":  "object",
				"title": "",
				"properties": map[string]any{
					FormDescriptionKey: map[string]any{"type": "string"},
					FormNameKey:        map[string]any{"type": "string"},
					FormSchemaKey:      map[string]any{"type": "string"},
					FormTypeKey:        map[string]any{"type": "string"},
				},
				"required": []any{FormDescriptionKey, FormNameKey, FormSchemaKey, FormTypeKey},
			},
			FormContentSection: map[string]any{
				"type":  "object",
				"title": "",
				"properties": map[string]any{
					FormContentKey: map[string]any{
						"type":       "object",
						"title":      "",
						"properties": map[string]any{},
					},
				},
				"required": []any{FormContentKey},
			},
			ClientSection: map[string]any{
				"type":  "object",
				"title": "Client",
				"properties": map[string]any{
					ClientNameKey:          map[string]any{"type": "string", "title": "Client name"},
					ClientSignatureDateKey: map[string]any{"type": "string", "title": "Date"},
					ClientSignatureDataKey: map[string]any{"type": "string", "title": "Client signature"},
				},
				"required": []any{ClientNameKey, ClientSignatureDateKey, ClientSignatureDataKey},
			},
			StaffSection: map[string]any{
				"type":  "object",
				"title": "Staff",
				"properties": map[string]any{
					StaffNameKey:          map[string]any{"type": "string", "title": "Staff name"},
					StaffSignatureDateKey: map[string]any{"type": "string", "title": "Date"},
					StaffSignatureDataKey: map[string]any{"type": "string", "title": "Staff signature"},
				},
				"required": []any{StaffNameKey, StaffSignatureDateKey, StaffSignatureDataKey},
			},
			WitnessSection: map[string]any{
				"type":  "array",
				"title": "Witnesses",
				"items": map[string]any{
					"type":  "object",
					"title": "",
					"properties": map[string]any{
						WitnessSignatureNameKey: map[string]any{"type": "string", "title": "Witness name"},
						WitnessSignatureDateKey: map[string]any{"type": "string", "title": "Date"},
						WitnessSignatureDataKey: map[string]any{"type": "string", "title": "Witness signature"},
						WitnessPersonNameKey:    map[string]any{"type": "string"},
					},
					"required": []any{WitnessSignatureNameKey, WitnessSignatureDateKey, WitnessSignatureDataKey},
				},
			},
		},
	}

	uiSchema := map[string]any{
		LocationSection: map[string]any{"classNames": "hidden"},
		FormSection:     map[string]any{"classNames": "hidden"},
		FormContentSection: map[string]any{
			"classNames":   "column-span-12",
			FormContentKey: map[string]any{"classNames": "column-span-12"},
		},
		ClientSection: map[string]any{
			"classNames":           "column-span-12 grid-container",
			ClientNameKey:          map[string]any{"classNames": "column-span-6"},
			ClientSignatureDateKey: map[string]any{"classNames": "column-span-6", "ui:widget": "DateWidget"},
			ClientSignatureDataKey: map[string]any{"classNames": "column-span-12", "ui:widget": "SignatureWidget"},
		},
		StaffSection: map[string]any{
			"classNames":          "column-span-12 grid-container",
			StaffNameKey:          map[string]any{"classNames": "column-span-6"},
			StaffSignatureDateKey: map[string]any{"classNames": "column-span-6", "ui:widget": "DateWidget"},
			StaffSignatureDataKey: map[string]any{"classNames": "column-span-12", "ui:widget": "SignatureWidget"},
		},
		WitnessSection: map[string]any{
			"classNames": "column-span-12",
			"items": map[string]any{
				"classNames":             "column-span-12 grid-container",
				WitnessSignatureNameKey: map[string]any{"classNames": "column-span-6"},
				WitnessSignatureDateKey: map[string]any{"classNames": "column-span-6", "ui:widget": "DateWidget"},
				WitnessSignatureDataKey: map[string]any{"classNames": "column-span-12", "ui:widget": "SignatureWidget"},
				WitnessPersonNameKey:    map[string]any{"classNames": "hidden"},
			},
			"ui:options": map[string]any{"addButtonText": "Additional Witness"},
		},
	}

	return &Schema{
		DataSchema: []map[string]any{dataSchema},
		UISchema:   []map[string]any{uiSchema},
	}
}
