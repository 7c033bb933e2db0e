package compose

// Media references under the media root.
const (
	YapeCourseQR  = "pago/yapecursos.jpeg"
	YapeProgramQR = "pago/yapeprog.jpeg"
	WebVideo      = "videos/WEB.mp4"
)

// PricePlaceholder stands in for a price the catalog does not carry.
const PricePlaceholder = "(por confirmar)"

const (
	msgStaleReference    = "⚠️ Lo siento, no pude encontrar el programa. Por favor, inicia la conversación nuevamente."
	msgNoProfileResponse = "⚠️ No hay respuesta configurada para esta opción."

	msgRepromptProfile  = "⚠️ Por favor elige una opción válida (1 a 5)."
	msgRepromptDecision = "⚠️ Por favor selecciona 1 o 2 para inscripción, o 3 o 4 para llamada."
	msgRepromptPayment  = "⚠️ Por favor elige tu método de pago: 1️⃣ Yape, 2️⃣ Depósito o transferencia, 3️⃣ Web."
	msgRepromptWeb      = "⚠️ Responde 1️⃣ si ya completaste tu inscripción o 2️⃣ si prefieres que un asesor te contacte."

	msgHandoffOpen   = "✨ Genial, en un momento un asesor se comunicará contigo para resolver tus consultas 😄"
	msgHandoffClosed = "⏰ ¡Estamos contentos de poder ayudarte en tu elección! Un asesor se comunicará contigo el día de *mañana*. Por favor, indícame un *horario* para que se contacte contigo. 🙋🏻‍♀️"

	msgPaymentMenu = `*¡Perfecto!* La inscripción es muy sencilla 😇

Contamos con los siguientes MÉTODOS DE PAGO👇🏻

1️⃣ Yape  📲
2️⃣ Depósito o transferencia bancaria 🏛️
3️⃣ Pago online vía Web 🌐(Aceptamos todas las tarjetas 💳)

Coméntame *¿Cuál sería tu mejor opción de pago?* 😊`

	msgYape = `*Perfecto* ✨

Te envío el número de Yape y Código QR 👇

📲 979 493 060 // WE Foundation`

	msgTransferCourse = `¡Excelente! Te comparto los datos de nuestra cuenta para que realices la transferencia:

🏛️ *Banco: BCP*
Número de cuenta: 193-9914694-0-22

y desde *otros Bancos*, puedes transferir a esta cuenta:
CCI: 00219300991469402218

*Titular*: WE Foundation`

	msgTransferProgram = `¡Excelente! Te comparto los datos de nuestra cuenta para que realices la transferencia:

🏛️ *Banco: BCP*
Número de cuenta: 193-9285511-0-38

y desde *otros Bancos*, puedes transferir a esta cuenta:
CCI: 002-19300928551103810

*Titular*: WE Educación Ejecutiva SAC`

	checklistHead = `*Bríndame por favor, los siguientes datos*:

🔹DNI o CÉDULA:
🔹Nombre completo:
🔹Número de Celular:
🔹Fecha de Inicio:
🔹Correo (Gmail):
🔹Foto de Voucher:
`
	checklistStudentLine = "🔹Foto de Intranet o Carnet Universitario:\n"
	checklistTail        = "\nY listo! 🌟 Cuando realices el pago y envío de tus datos, me avisas para comentarte los siguientes detalles. 🙋🏻‍♀️💙"

	msgWebTemplate = `👉 “Perfecto, puedes hacer tu pago de manera rápida y 100%% segura a través de nuestra web:

🔗 %s

💡 Ventaja: El pago se confirma al instante, tu matrícula queda asegurada y podrás acceder a tus cursos online gratuitos en el Campus Virtual W|E⚡”

🚨Revisa los pasos del video 👇🏻 e inscríbete en menos de 1 minuto, fácil, rápido y seguro.

Y listo! 🌟 Cuando realices el pago y envío de tus datos, me avisas para comentarte los siguientes detalles. 🙋🏻‍♀️💙`
	msgWebVideoMissing = "⚠️ Lo siento, no se pudo cargar el video explicativo. Revisa la web para el pago."
	msgWebUnavailable  = "⚠️ Lo siento, el pago web no está disponible para este programa en este momento. Un asesor se comunicará contigo para ayudarte con tu inscripción. 🙋🏻‍♀️"

	msgWebFollowUp = `👋 ¿Pudiste completar tu inscripción en la web?

1️⃣ Sí, ya me inscribí ✅
2️⃣ Necesito ayuda de un asesor 🙋🏻‍♀️`

	msgRegistrationConfirmed = "🎉 *¡Felicitaciones!* Tu inscripción quedó registrada. En breve te enviaremos los detalles de acceso a tu correo. 💙"
)
